package main

import (
	"flag"
	"fmt"
	"os"
)

type args struct {
	endpoint string
	embedded bool
	liveDkg  bool
	dataDir  string
}

func ParseArgs() (args, error) {
	flag.Usage = func() {
		fmt.Printf("Exercise a tessnet node end to end: register two role profiles, submit a keygen job and submit its signed result.\n\n")
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	endpoint := flag.String("endpoint", "", "Websocket rpc endpoint of the node (overrides config and TESSNET_RPC)")
	embedded := flag.Bool("embedded", false, "Run an embedded devnet node instead of dialing an external one")
	liveDkg := flag.Bool("live-dkg", false, "Run a real in-process two-party keygen instead of the deterministic simulated output")
	dataDir := flag.String("dataDir", "data", "Directory for config files and the keygen keystore")
	flag.Parse()

	return args{
		*endpoint,
		*embedded,
		*liveDkg,
		*dataDir,
	}, nil
}
