package main

import (
	"flag"
	"log"
	"strings"

	"github.com/robotalks/tvc.go/pkg/console/comm/mqtt"
	"github.com/robotalks/tvc.go/pkg/console/msgs"
	"github.com/robotalks/tvc.go/pkg/env"
)

var (
	mqttURL = "mqtt://localhost:1883/tvc/"
)

func init() {
	if val := env.Getenv("MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
}

func printPacket(topic string, payload []byte) {
	if strings.HasSuffix(topic, "/"+mqtt.TopicMeta) {
		if len(payload) == 0 {
			log.Printf("%s: gone", topic)
			return
		}
		log.Printf("%s: %s", topic, string(payload))
		return
	}
	typed, err := msgs.DecodeTyped(payload)
	if err != nil {
		log.Printf("%s: bad message: %v", topic, err)
		return
	}
	msg, err := typed.Decode()
	if err != nil {
		log.Printf("%s: decode error: (type_id=%x seq=%d) %v", topic, typed.TypeId, typed.Sequence, err)
		return
	}
	log.Printf("%s: #%d [%s] %s", topic, typed.Sequence,
		msgs.TypeName(msg),
		msg.(msgs.SerializableMessage).Serializable().String())
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	opts, prefix, err := mqtt.ParseURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	s := mqtt.NewSession(opts, prefix)
	s.Subscribe("#", printPacket)
	if token := s.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
