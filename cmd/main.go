package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agaabrieel/trackercore/pkg/log"
	"github.com/agaabrieel/trackercore/pkg/metainfo"
	"github.com/agaabrieel/trackercore/pkg/tracker"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: trackercore <torrent-file-or-magnet-uri>")
		os.Exit(1)
	}

	m, err := loadMetainfo(os.Args[1])
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	fmt.Printf("infohash %s\n", m.InfoHash.Hex())

	var peerID tracker.PeerID
	if _, err := rand.Read(peerID[:]); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	logger := log.New("trackercore", log.NewWriterSink(os.Stderr), log.WithMinimumLevel(log.Info))

	mgr := tracker.NewManager(m, peerID, 6881, tracker.DefaultConfig(), logger)
	mgr.SetPeersCallback(func(peers []tracker.PeerAddr) {
		for _, p := range peers {
			fmt.Println("peer", p.String())
		}
	})

	if err := mgr.Announce(tracker.EventStarted, 50); err != nil {
		fmt.Println("initial announce:", err)
	}

	mgr.Start()
	defer mgr.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, p := range mgr.DrainNewPeers() {
				fmt.Println("drained peer", p.String())
			}
		case <-sigCh:
			mgr.Announce(tracker.EventStopped, 0)
			return
		}
	}
}

func loadMetainfo(arg string) (*metainfo.Metainfo, error) {
	if len(arg) > 7 && arg[:7] == "magnet:" {
		return metainfo.LoadMagnet(arg)
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return nil, err
	}
	return metainfo.Load(data)
}
