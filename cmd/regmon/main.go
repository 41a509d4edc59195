package main

import (
	"flag"
	"log"
	"os"
	"strings"

	"github.com/robotalks/nfcreg/pkg/l1/comm/mqtt"
)

var (
	mqttURL = "mqtt://localhost:1883/nfcreg/"
)

func init() {
	if val := os.Getenv("NFCREG_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub("+/status", func(topic string, payload []byte) {
		log.Printf("%s: %s", strings.TrimSuffix(topic, "/status"), string(payload))
	})
	q.Sub("+/event/#", func(topic string, payload []byte) {
		e, err := mqtt.DecodeEvent(payload)
		if err != nil {
			log.Printf("%s: bad event: %v", topic, err)
			return
		}
		hostID := topic[:strings.Index(topic, "/")]
		log.Printf("%s [%s] %s", hostID, e.Session, e)
	})
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
