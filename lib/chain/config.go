package chain

import (
	"fmt"
	"net/url"
	"os"

	"tessnet-demo/modules/config"
)

const DefaultRPCEndpoint = "ws://127.0.0.1:8180/rpc"

type rpcConfig struct {
	Endpoint string
}

type rpcConfigStruct struct {
	*config.Config[rpcConfig]
}

type RPCConfig = *rpcConfigStruct

func NewRPCConfig(dataDir ...string) RPCConfig {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return &rpcConfigStruct{config.New(rpcConfig{
		Endpoint: DefaultRPCEndpoint,
	}, dataDirPtr)}
}

func (rc *rpcConfigStruct) Init() error {
	err := rc.Config.Init()
	if err != nil {
		return fmt.Errorf("failed to init rpc config: %w", err)
	}

	endpoint := os.Getenv("TESSNET_RPC")
	if endpoint != "" {
		return rc.SetEndpoint(endpoint)
	}
	return nil
}

func (rc *rpcConfigStruct) SetEndpoint(endpoint string) error {
	if endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("invalid rpc endpoint: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("rpc endpoint must be ws:// or wss://, got %q", u.Scheme)
		}
	}
	return rc.Update(func(rc *rpcConfig) {
		if endpoint == "" {
			rc.Endpoint = DefaultRPCEndpoint
		} else {
			rc.Endpoint = endpoint
		}
	})
}

func (rc *rpcConfigStruct) Endpoint() string {
	return rc.Get().Endpoint
}
