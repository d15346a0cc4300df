package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gos-rtos/gostool.go/pkg/monitor"
	"github.com/gos-rtos/gostool.go/pkg/mqtt"
)

const connectTimeout = 5 * time.Second

var (
	mqttURL = "mqtt://localhost:1883/gos/"
)

func init() {
	if val := os.Getenv("GOS_MQTT_URL"); val != "" {
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
	q.Sub("#", mqtt.Handler(func(topic string, payload []byte) {
		sample, err := monitor.DecodeSample(payload)
		if err != nil {
			log.Printf("%s: bad sample: %v", topic, err)
			return
		}
		text, err := sample.JSON()
		if err != nil {
			log.Printf("%s: %v", topic, err)
			return
		}
		log.Printf("%s: %s", topic, text)
	}))
	if err := q.Connect(connectTimeout); err != nil {
		log.Fatalln(err)
	}
	defer q.Close()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
