/*
Package events streams the progress of provisioning runs.

The pipeline publishes run and stage events to a Broker; the CLI subscribes
to print progress while a deployment runs. Delivery is best effort: a
subscriber whose buffer is full misses events, and publishing never blocks
on a slow reader.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	go func() {
		for e := range sub {
			fmt.Println(e.Type, e.Stage)
		}
	}()
*/
package events
