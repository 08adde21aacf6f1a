package main

import (
	"fmt"
	"log"

	paho "github.com/eclipse/paho.mqtt.golang"
)

func newMQTTClient(broker, clientID string) (paho.Client, error) {
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID(clientID)
	opts.AutoReconnect = true
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// serve subscribes to the command topics and answers on stat/<prefix>/POWER<n>.
func serve(cli paho.Client, prefix string, board *Board) error {
	handler := func(c paho.Client, m paho.Message) {
		ch, on, err := ParseCommand(m.Topic(), string(m.Payload()))
		if err != nil {
			log.Printf("ignore %s: %v", m.Topic(), err)
			return
		}
		state, err := board.Apply(ch, on)
		if err != nil {
			log.Printf("relay %d: %v", ch, err)
			return
		}
		payload := "OFF"
		if state {
			payload = "ON"
		}
		log.Printf("relay %d -> %s", ch, payload)
		c.Publish(fmt.Sprintf("stat/%s/POWER%d", prefix, ch+1), 1, false, payload)
	}
	tok := cli.Subscribe(fmt.Sprintf("cmnd/%s/+", prefix), 1, handler)
	tok.Wait()
	return tok.Error()
}
