package snapshot

import (
	"context"
	"errors"
	"fmt"

	"github.com/valkey-io/valkey-go"
)

// Valkey stores the record set as one hash: field = UID, value = record.
type Valkey struct {
	client valkey.Client
	key    string
}

// NewValkey connects to addr and verifies the connection with PING.
func NewValkey(ctx context.Context, addr, key, password string) (*Valkey, error) {
	if key == "" {
		return nil, errors.New("snapshot: valkey key is empty")
	}
	if addr == "" {
		addr = "localhost:6379"
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
		Password:    password,
	})
	if err != nil {
		return nil, fmt.Errorf("snapshot: create valkey client: %w", err)
	}
	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("snapshot: valkey ping failed: %w", err)
	}
	return &Valkey{client: client, key: key}, nil
}

func (v *Valkey) Load(ctx context.Context) (map[string]string, error) {
	records, err := v.client.Do(ctx, v.client.B().Hgetall().Key(v.key).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("valkey hgetall: %w", err)
	}
	if records == nil {
		records = make(map[string]string)
	}
	return records, nil
}

// Save rebuilds the hash under a temp key and RENAMEs it over the live key,
// so the live hash is never observed half-written.
func (v *Valkey) Save(ctx context.Context, records map[string]string) error {
	if len(records) == 0 {
		if err := v.client.Do(ctx, v.client.B().Del().Key(v.key).Build()).Error(); err != nil {
			return fmt.Errorf("valkey del: %w", err)
		}
		return nil
	}

	tmp := v.key + ":tmp"
	hset := v.client.B().Hset().Key(tmp).FieldValue()
	for uid, rec := range records {
		hset = hset.FieldValue(uid, rec)
	}
	cmds := valkey.Commands{
		v.client.B().Del().Key(tmp).Build(),
		hset.Build(),
		v.client.B().Rename().Key(tmp).Newkey(v.key).Build(),
	}
	for i, resp := range v.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("valkey save (cmd %d): %w", i, err)
		}
	}
	return nil
}

func (v *Valkey) Close() error {
	v.client.Close()
	return nil
}
