package config

import (
	"encoding/json"
	"io"
	"os"
	"path"
	"reflect"

	"tessnet-demo/lib/utils"

	"github.com/chebyrash/promise"
)

type Config[T any] struct {
	defaultValue T
	dataDir      *string

	loaded bool
	value  T
}

const DATA_DIR = "data"

func New[T any](defaultValue T, dataDir *string) *Config[T] {
	return &Config[T]{defaultValue: defaultValue, dataDir: dataDir}
}

func (c *Config[T]) configDir() string {
	dataDir := DATA_DIR
	if c.dataDir != nil {
		dataDir = *c.dataDir
	}
	return path.Join(dataDir, "config")
}

// FilePath is the on disk location of this config, derived from the
// name of the config struct.
func (c *Config[T]) FilePath() string {
	name := reflect.TypeFor[T]().Name()
	return path.Join(c.configDir(), name+".json")
}

func (c *Config[T]) Init() error {
	f, err := os.Open(c.FilePath())
	if err != nil {
		if os.IsNotExist(err) {
			err = c.Update(func(t *T) {
				*t = c.defaultValue
			})
			if err != nil {
				return err
			}
		} else {
			return err
		}
	} else {
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		err = json.Unmarshal(b, &c.value)
		if err != nil {
			return err
		}
	}
	c.loaded = true
	return nil
}

func (c *Config[T]) Start() *promise.Promise[any] {
	return utils.PromiseResolve[any](nil)
}

func (c *Config[T]) Stop() error {
	return nil
}

func (c *Config[T]) Get() T {
	return c.value
}

func (c *Config[T]) Update(updater func(*T)) error {
	temp := c.value
	updater(&temp)
	b, err := json.MarshalIndent(temp, "", "  ")
	if err != nil {
		return err
	}
	err = os.MkdirAll(path.Dir(c.FilePath()), 0755)
	if err != nil {
		return err
	}
	err = os.WriteFile(c.FilePath(), b, 0644)
	if err != nil {
		return err
	}
	c.value = temp
	return nil
}
