package main

import (
	"flag"
	"fmt"
	"os"
)

type args struct {
	listenAddr string
	dataDir    string
}

func ParseArgs() (args, error) {
	flag.Usage = func() {
		fmt.Printf("Run a standalone tessnet devnet node.\n\n")
		fmt.Printf("Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	listenAddr := flag.String("listen", "", "Address to serve the websocket rpc on (overrides config)")
	dataDir := flag.String("dataDir", "data", "Directory for config files")
	flag.Parse()

	return args{
		*listenAddr,
		*dataDir,
	}, nil
}
