// Package client runs agents on behalf of an application.
//
// An Agent wraps an event producer (an in-process agent or a transport such
// as httpsse.Producer) and keeps the conversation of one thread. Each run
// sends the durable history and the state document, verifies the returned
// event stream, folds it into messages and state, and notifies subscribers
// as it goes. Only one run is active per agent at a time.
//
// Example usage:
//
//	agent, err := client.NewAgent(producer, client.Config{AgentID: "assistant"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := agent.AddMessages(messages.NewUserMessage("Hello!")); err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := agent.RunWithTools(ctx, client.RunParams{
//		Tools: registry.Definitions(),
//	}, tools.NewExecutor(registry), &client.SubscriberFuncs{
//		NewMessage: func(rc *client.RunContext, msg messages.Message) {
//			fmt.Println("new message", msg.GetID())
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Messages)
package client
