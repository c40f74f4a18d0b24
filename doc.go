// Package agentsdk provides a Go SDK for driving coding-agent CLIs.
//
// The SDK speaks to three backends through one API: the Claude CLI (the
// default), the Codex CLI, and the Cursor Agent CLI. Each backend's wire
// protocol is normalized onto the same message types, so application code
// written against one backend works against the others. It supports both
// one-shot queries and interactive multi-turn conversations.
//
// # Basic Usage
//
// For simple, one-shot queries, use the Query function:
//
//	ctx := context.Background()
//	for msg, err := range agentsdk.Query(ctx, "What is 2+2?",
//	    agentsdk.WithPermissionMode("acceptEdits"),
//	    agentsdk.WithMaxTurns(1),
//	) {
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    switch m := msg.(type) {
//	    case *agentsdk.AssistantMessage:
//	        for _, block := range m.Content {
//	            if text, ok := block.(*agentsdk.TextBlock); ok {
//	                fmt.Println(text.Text)
//	            }
//	        }
//	    case *agentsdk.ResultMessage:
//	        fmt.Printf("Completed in %dms\n", m.DurationMs)
//	    }
//	}
//
// # Backend Selection
//
// The backend is chosen with WithBackend; the default is BackendClaude:
//
//	for msg, err := range agentsdk.Query(ctx, "What is 2+2?",
//	    agentsdk.WithBackend(agentsdk.BackendCodex),
//	) {
//	    // same message types as Claude
//	}
//
// Backends differ in what their protocols can express. Capabilities reports
// the active backend's feature set, and operations a backend cannot perform
// fail fast with UnsupportedFeatureError. Options a backend cannot honor are
// rejected at Start or Query time with UnsupportedOptionsError listing every
// violation.
//
// # Interactive Sessions
//
// For multi-turn conversations, use NewClient or the WithClient helper:
//
//	// Using WithClient for automatic lifecycle management
//	err := agentsdk.WithClient(ctx, func(c agentsdk.Client) error {
//	    if err := c.Query(ctx, "Hello Claude"); err != nil {
//	        return err
//	    }
//	    for msg, err := range c.ReceiveResponse(ctx) {
//	        if err != nil {
//	            return err
//	        }
//	        // process message...
//	    }
//	    return nil
//	},
//	    agentsdk.WithLogger(slog.Default()),
//	    agentsdk.WithPermissionMode("acceptEdits"),
//	)
//
//	// Or using NewClient directly for more control
//	client := agentsdk.NewClient()
//	defer client.Close()
//
//	err := client.Start(ctx,
//	    agentsdk.WithLogger(slog.Default()),
//	    agentsdk.WithPermissionMode("acceptEdits"),
//	)
//
// # Logging
//
// For detailed operation tracking, use WithLogger:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	for msg, err := range agentsdk.Query(ctx, "Hello Claude",
//	    agentsdk.WithLogger(logger),
//	) {
//	    // ...
//	}
//
// # Error Handling
//
// The SDK provides typed errors for different failure scenarios:
//
//	for msg, err := range agentsdk.Query(ctx, prompt, agentsdk.WithPermissionMode("acceptEdits")) {
//	    if err != nil {
//	        if cliErr, ok := errors.AsType[*agentsdk.CLINotFoundError](err); ok {
//	            log.Fatalf("agent CLI not installed, searched: %v", cliErr.SearchedPaths)
//	        }
//	        if procErr, ok := errors.AsType[*agentsdk.ProcessError](err); ok {
//	            log.Fatalf("CLI process failed with exit code %d: %s", procErr.ExitCode, procErr.Stderr)
//	        }
//	        log.Fatal(err)
//	    }
//	}
//
// # Requirements
//
// The selected backend's CLI must be installed and available in your system
// PATH (claude, codex, or cursor-agent). You can specify a custom CLI path
// using the WithCliPath option.
package agentsdk
