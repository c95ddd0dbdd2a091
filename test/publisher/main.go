package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/pebbe/zmq4"
)

var (
	speakers = []string{"Anna", "Annie", "Bob", "Carl", "Eve"}
	forms    = []string{
		"[Commerce] %s : selling %d kamas of stuff",
		"[Guilde] %s : hello guild #%d",
		"[Proximité] %s : anyone near? %d",
		"[Groupe] %s : pull in %d",
		`[Privé] FROM "%s" : psst %d`,
		"[Information (jeu)] %s (Iop %d) a rejoint notre monde",
	}
)

func line(rng *rand.Rand, i int) string {
	now := time.Now()
	stamp := fmt.Sprintf("%02d:%02d:%02d,%03d - ", now.Hour(), now.Minute(), now.Second(), now.Nanosecond()/1e6)
	form := forms[rng.Intn(len(forms))]
	return stamp + fmt.Sprintf(form, speakers[rng.Intn(len(speakers))], i)
}

func main() {
	addr := flag.String("addr", "tcp://*:5556", "ZMQ address to bind the PUB socket on")
	batch := flag.Int("batch", 1, "lines per frame")
	every := flag.Duration("every", time.Second, "delay between frames")
	flag.Parse()

	pub, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		log.Fatalf("failed to create PUB socket: %v", err)
	}
	defer pub.Close()

	if err := pub.Bind(*addr); err != nil {
		log.Fatalf("failed to bind PUB socket: %v", err)
	}

	// Give SUB time to connect
	time.Sleep(500 * time.Millisecond)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; ; {
		lines := make([]string, 0, *batch)
		for range *batch {
			lines = append(lines, line(rng, i))
			i++
		}
		if _, err := pub.Send(strings.Join(lines, "\n")+"\n", 0); err != nil {
			log.Printf("send error: %v\n", err)
			continue
		}
		log.Printf("Sent %d chat lines, total %d\n", len(lines), i)
		time.Sleep(*every)
	}
}
