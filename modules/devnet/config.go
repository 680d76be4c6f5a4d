package devnet

import (
	"fmt"

	"tessnet-demo/modules/config"
)

const DefaultListenAddr = "127.0.0.1:8180"

type devnetConfig struct {
	ListenAddr           string
	BlockIntervalSeconds uint64
}

type devnetConfigStruct struct {
	*config.Config[devnetConfig]
}

type Config = *devnetConfigStruct

func NewConfig(dataDir ...string) Config {
	var dataDirPtr *string
	if len(dataDir) > 0 {
		dataDirPtr = &dataDir[0]
	}

	return &devnetConfigStruct{config.New(devnetConfig{
		ListenAddr:           DefaultListenAddr,
		BlockIntervalSeconds: 1,
	}, dataDirPtr)}
}

func (dc *devnetConfigStruct) Init() error {
	err := dc.Config.Init()
	if err != nil {
		return fmt.Errorf("failed to init devnet config: %w", err)
	}
	if dc.Get().BlockIntervalSeconds == 0 {
		return fmt.Errorf("block interval must be at least 1 second")
	}
	return nil
}

func (dc *devnetConfigStruct) ListenAddr() string {
	return dc.Get().ListenAddr
}

func (dc *devnetConfigStruct) BlockIntervalSeconds() uint64 {
	return dc.Get().BlockIntervalSeconds
}

func (dc *devnetConfigStruct) SetListenAddr(addr string) error {
	if addr == "" {
		addr = DefaultListenAddr
	}
	return dc.Update(func(dc *devnetConfig) {
		dc.ListenAddr = addr
	})
}
