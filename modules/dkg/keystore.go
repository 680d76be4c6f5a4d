package dkg

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/davidlazar/go-crypto/encoding/base32"
	"github.com/ipfs/go-datastore"
	flatfs "github.com/ipfs/go-ds-flatfs"
	"github.com/moznion/go-optional"
)

// Keystore persists keygen outputs on disk, one record per job.
type Keystore struct {
	ds *flatfs.Datastore
}

func OpenKeystore(path string) (*Keystore, error) {
	ds, err := flatfs.CreateOrOpen(path, flatfs.Prefix(1), false)
	if err != nil {
		return nil, fmt.Errorf("failed to open keystore at %s: %w", path, err)
	}
	return &Keystore{ds: ds}, nil
}

func makeKey(t string, id string) datastore.Key {
	k1 := base32.EncodeToString([]byte(t + "-" + base64.RawURLEncoding.EncodeToString([]byte(id))))
	k := datastore.NewKey(strings.ToUpper(k1))

	return k
}

func jobKey(jobId uint64) datastore.Key {
	return makeKey("keygen", strconv.FormatUint(jobId, 10))
}

func (ks *Keystore) Put(ctx context.Context, jobId uint64, out *Output) error {
	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to serialize keygen output: %w", err)
	}
	return ks.ds.Put(ctx, jobKey(jobId), data)
}

// Get returns None when no output was stored for the job.
func (ks *Keystore) Get(ctx context.Context, jobId uint64) (optional.Option[Output], error) {
	data, err := ks.ds.Get(ctx, jobKey(jobId))
	if errors.Is(err, datastore.ErrNotFound) {
		return optional.None[Output](), nil
	}
	if err != nil {
		return optional.None[Output](), err
	}

	out := Output{}
	if err := json.Unmarshal(data, &out); err != nil {
		return optional.None[Output](), fmt.Errorf("corrupt keygen record for job %d: %w", jobId, err)
	}
	return optional.Some(out), nil
}

func (ks *Keystore) Close() error {
	return ks.ds.Close()
}
