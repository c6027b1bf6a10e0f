// Package controller implements the host side of the siteos protocol.
//
// A Controller owns zero or more Instances, each the handle to one guest context that
// is either embedded (Surface) or opened in a separate window (SeparateWindow). It
// routes every inbound message to the Instance whose target sent it, enforces the
// origin allowlist, correlates request/response pairs and keeps each Instance's props
// synchronized with its guest.
//
// The Controller handles:
//   - Launching guests as surfaces or separate windows
//   - Matching inbound messages to instances by source handle and allowlisted origin
//   - Resolving pending requests from resolution envelopes
//   - Dispatching events to Controller-wide and Instance-local listeners
//   - Answering Props requests and applying PropsUpdated broadcasts
//   - Migrating instances between surfaces and windows without losing identity
//
// Example usage:
//
//	ctrl, err := controller.New(host, "https://guest.example/app", &config.Options{Logger: log})
//	ctrl.Start(ctx)
//	defer ctrl.Stop()
//
//	inst, err := ctrl.Launch(ctx, "sidebar", map[string]any{"theme": "dark"})
//	inst.On("ping", func(ctx context.Context, ev *controller.Event) { ... })
//	_ = inst.Emit(ctx, "hello", 42)
//
//	// Bound the wait yourself; requests have no built-in timeout
//	reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
//	defer cancel()
//	args, err := inst.Request(reqCtx, "getValue")
package controller
