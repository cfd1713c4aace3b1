package watch

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/specialistvlad/wfengine/internal/ctxlog"
	"github.com/specialistvlad/wfengine/internal/events"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// Options select what to watch.
type Options struct {
	// URL is the base URL of the ops server, e.g. http://localhost:7071.
	URL        string
	ProjectID  string
	WorkflowID string
	Out        io.Writer
}

// Run subscribes to a workflow and prints its patches until ctx is done or
// the server rejects the subscription.
func Run(ctx context.Context, opts Options) error {
	logger := ctxlog.FromContext(ctx).With("url", opts.URL, "project", opts.ProjectID)
	parsedURL, err := url.Parse(opts.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}
	if opts.WorkflowID == "" {
		opts.WorkflowID = "root"
	}

	stream := NewStream(opts.Out, logger)
	done := make(chan error, 1)
	finish := func(err error) {
		select {
		case done <- err:
		default:
		}
	}

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	sockOpts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		sockOpts.SetPath(parsedURL.Path)
	}
	sockOpts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(baseURL, sockOpts)
	client := manager.Socket("/", sockOpts)
	defer func() {
		logger.Debug("Disconnecting socket client")
		client.Disconnect()
	}()

	client.On(types.EventName("connect"), func(...any) {
		logger.Debug("Connected, subscribing.", "workflow", opts.WorkflowID)
		client.Emit(events.EventSubscribe, map[string]any{
			"projectId":  opts.ProjectID,
			"workflowId": opts.WorkflowID,
		})
	})
	client.On(types.EventName("connect_error"), func(errs ...any) {
		if err, ok := first(errs).(error); ok {
			finish(fmt.Errorf("failed to connect: %w", err))
			return
		}
		finish(fmt.Errorf("failed to connect"))
	})
	for _, name := range []string{events.EventSubscribed, events.EventPatch, events.EventSubscribeError} {
		client.On(types.EventName(name), func(args ...any) {
			if err := stream.Handle(name, first(args)); err != nil {
				finish(err)
			}
		})
	}

	client.Connect()

	select {
	case <-ctx.Done():
		logger.Debug("Watch stopped.")
		return nil
	case err := <-done:
		logger.Debug("Watch finished.", "error", err)
		return err
	}
}

func first(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
