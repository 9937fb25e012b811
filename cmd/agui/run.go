package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ag-ui/go-engine/pkg/client"
	"github.com/ag-ui/go-engine/pkg/core"
	"github.com/ag-ui/go-engine/pkg/core/events"
	"github.com/ag-ui/go-engine/pkg/messages"
	"github.com/ag-ui/go-engine/pkg/transport/httpsse"
	"github.com/ag-ui/go-engine/pkg/transport/ws"
)

type runFlags struct {
	threadID string
	identity string
	state    string
	headers  []string
	text     bool
}

// runCmd: agui run [endpoint] <message>
func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run [endpoint] <message>",
		Short: "Stream one run and print its events",
		Long: `Run sends a user message to an agent and prints every event as a JSON
line. The endpoint may be http(s) for SSE or ws(s) for WebSocket; it can be
omitted when the config file names one.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			endpoint, message := g.config.Endpoint, args[0]
			if len(args) == 2 {
				endpoint, message = args[0], args[1]
			}
			if endpoint == "" {
				return fmt.Errorf("no endpoint given")
			}
			return f.run(cmd, g, endpoint, message)
		},
	}
	cmd.Flags().StringVar(&f.threadID, "thread", "", "thread id (default: generated)")
	cmd.Flags().StringVar(&f.identity, "identity", "", "eager or deferred id assignment")
	cmd.Flags().StringVar(&f.state, "state", "", "initial state document as JSON")
	cmd.Flags().StringArrayVarP(&f.headers, "header", "H", nil, "extra request header, key=value")
	cmd.Flags().BoolVar(&f.text, "text", false, "print only the assistant's text")
	return cmd
}

func (f *runFlags) run(cmd *cobra.Command, g *globalFlags, endpoint, message string) error {
	producer, err := newProducer(g, endpoint, append(g.config.Headers, f.headers...))
	if err != nil {
		return err
	}

	config := g.config.Client
	if f.threadID != "" {
		config.ThreadID = f.threadID
	}
	if f.identity != "" {
		config.Identity = f.identity
	}
	if f.state != "" {
		var doc any
		if err := json.Unmarshal([]byte(f.state), &doc); err != nil {
			return fmt.Errorf("--state: %w", err)
		}
		config.InitialState = doc
	}

	agent, err := client.NewAgent(producer, config,
		client.WithLogger(g.logger),
		client.WithMessages(messages.NewUserMessage(message)))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printer := &client.SubscriberFuncs{
		Event: func(_ *client.RunContext, event events.Event) client.Mutation {
			if f.text {
				if e, ok := event.(*events.TextMessageContentEvent); ok {
					fmt.Fprint(out, e.Delta)
				}
				return client.Mutation{}
			}
			data, err := event.ToJSON()
			if err == nil {
				fmt.Fprintln(out, string(data))
			}
			return client.Mutation{}
		},
	}

	res, err := agent.Run(cmd.Context(), client.RunParams{}, printer)
	if f.text {
		fmt.Fprintln(out)
	}
	if res != nil {
		g.logger.WithFields(logrus.Fields{
			"thread_id": res.Identity.ThreadID,
			"run_id":    res.Identity.RunID,
			"state":     res.State.String(),
		}).Info("run done")
	}
	return err
}

// newProducer picks the transport from the endpoint scheme.
func newProducer(g *globalFlags, endpoint string, headers []string) (core.EventProducer, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	kv := make([][2]string, 0, len(headers))
	for _, h := range headers {
		key, value, ok := strings.Cut(h, "=")
		if !ok {
			return nil, fmt.Errorf("header %q is not key=value", h)
		}
		kv = append(kv, [2]string{key, value})
	}

	switch u.Scheme {
	case "ws", "wss":
		opts := []ws.Option{ws.WithLogger(g.logger)}
		for _, h := range kv {
			opts = append(opts, ws.WithHeader(h[0], h[1]))
		}
		return ws.NewProducer(endpoint, opts...)
	default:
		opts := []httpsse.Option{httpsse.WithLogger(g.logger)}
		for _, h := range kv {
			opts = append(opts, httpsse.WithHeader(h[0], h[1]))
		}
		return httpsse.NewProducer(endpoint, opts...)
	}
}
