// Package valkey stores the credential pair in Valkey so several machines can
// share one storefront session.
package valkey

import (
	"context"
	"fmt"
	"strings"

	"github.com/valkey-io/valkey-go"

	"github.com/Sentinel-Gate/storefront/internal/domain/session"
)

// Store implements session.CredentialStore on two Valkey string keys,
// "<prefix>:access_token" and "<prefix>:refresh_token". Writes use MSET and
// reads use MGET, so the pair is replaced and read atomically.
type Store struct {
	client valkey.Client
	prefix string
}

var _ session.CredentialStore = (*Store)(nil)

// NewStore wraps an existing client.
func NewStore(client valkey.Client, prefix string) *Store {
	return &Store{
		client: client,
		prefix: strings.TrimSuffix(prefix, ":"),
	}
}

// Dial connects to addr and returns a Store that owns the client.
func Dial(addr, prefix string) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		return nil, fmt.Errorf("creating a new valkey client: %w", err)
	}
	return NewStore(client, prefix), nil
}

// Close closes the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

func (s *Store) key(name string) string {
	return s.prefix + ":" + name
}

func (s *Store) Load(ctx context.Context) (session.Credentials, error) {
	cmd := s.client.B().Mget().Key(s.key(session.AccessTokenKey), s.key(session.RefreshTokenKey)).Build()
	msgs, err := s.client.Do(ctx, cmd).ToArray()
	if err != nil {
		return session.Credentials{}, fmt.Errorf("executing mget command: %w", err)
	}
	if len(msgs) != 2 {
		return session.Credentials{}, fmt.Errorf("mget returned %d values, want 2", len(msgs))
	}

	vals := make([]string, 2)
	for i := range msgs {
		if msgs[i].IsNil() {
			continue
		}
		v, err := msgs[i].ToString()
		if err != nil {
			return session.Credentials{}, fmt.Errorf("decoding value: %w", err)
		}
		vals[i] = v
	}
	if vals[0] == "" && vals[1] == "" {
		return session.Credentials{}, session.ErrNoCredentials
	}
	return session.Credentials{Access: vals[0], Refresh: vals[1]}, nil
}

func (s *Store) Save(ctx context.Context, creds session.Credentials) error {
	cmd := s.client.B().Mset().KeyValue().
		KeyValue(s.key(session.AccessTokenKey), creds.Access).
		KeyValue(s.key(session.RefreshTokenKey), creds.Refresh).
		Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing mset command: %w", err)
	}
	return nil
}

func (s *Store) Clear(ctx context.Context) error {
	cmd := s.client.B().Del().Key(s.key(session.AccessTokenKey), s.key(session.RefreshTokenKey)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("executing del command: %w", err)
	}
	return nil
}
