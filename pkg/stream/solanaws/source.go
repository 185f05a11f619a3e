// Package solanaws implements stream.Source on the Solana RPC websocket API.
package solanaws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog"

	"github.com/1000xsh/voteperfx/pkg/stream"
)

const updateBuffer = 256

// Source subscribes to the vote account and to slot notifications over one
// websocket connection per Stream.
type Source struct {
	url        string
	commitment rpc.CommitmentType
	logger     zerolog.Logger
}

func NewSource(url string, commitment string, logger zerolog.Logger) (*Source, error) {
	c, err := ParseCommitment(commitment)
	if err != nil {
		return nil, err
	}
	return &Source{url: url, commitment: c, logger: logger}, nil
}

// ParseCommitment maps a commitment name to its RPC constant.
func ParseCommitment(name string) (rpc.CommitmentType, error) {
	switch name {
	case "processed":
		return rpc.CommitmentProcessed, nil
	case "confirmed", "":
		return rpc.CommitmentConfirmed, nil
	case "finalized":
		return rpc.CommitmentFinalized, nil
	default:
		return "", fmt.Errorf("unknown commitment %q", name)
	}
}

func (s *Source) Subscribe(ctx context.Context, account solana.PublicKey) (stream.Stream, error) {
	client, err := ws.Connect(ctx, s.url)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", s.url, err)
	}

	accSub, err := client.AccountSubscribeWithOpts(account, s.commitment, solana.EncodingBase64)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("account subscribe %s: %w", account, err)
	}
	slotSub, err := client.SlotSubscribe()
	if err != nil {
		accSub.Unsubscribe()
		client.Close()
		return nil, fmt.Errorf("slot subscribe: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	st := &wsStream{
		client:  client,
		accSub:  accSub,
		slotSub: slotSub,
		account: account,
		updates: make(chan stream.Update, updateBuffer),
		errc:    make(chan error, 2),
		cancel:  cancel,
	}
	st.wg.Add(2)
	go st.pumpAccount(pumpCtx)
	go st.pumpSlots(pumpCtx)

	s.logger.Info().
		Str("url", s.url).
		Str("account", account.String()).
		Str("commitment", string(s.commitment)).
		Msg("vote account subscription established")
	return st, nil
}

type wsStream struct {
	client  *ws.Client
	accSub  *ws.AccountSubscription
	slotSub *ws.SlotSubscription
	account solana.PublicKey

	updates chan stream.Update
	errc    chan error
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	once    sync.Once
}

func (s *wsStream) pumpAccount(ctx context.Context) {
	defer s.wg.Done()
	for {
		res, err := s.accSub.Recv(ctx)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		if res == nil || res.Value.Account.Data == nil {
			continue
		}
		upd := stream.AccountUpdate{
			Pubkey: s.account,
			Slot:   res.Context.Slot,
			Data:   res.Value.Account.Data.GetBinary(),
		}
		if !s.push(ctx, upd) {
			return
		}
	}
}

func (s *wsStream) pumpSlots(ctx context.Context) {
	defer s.wg.Done()
	for {
		res, err := s.slotSub.Recv(ctx)
		if err != nil {
			s.fail(ctx, err)
			return
		}
		if res == nil {
			continue
		}
		if !s.push(ctx, stream.SlotUpdate{Slot: res.Slot, Parent: res.Parent, Root: res.Root}) {
			return
		}
	}
}

func (s *wsStream) push(ctx context.Context, upd stream.Update) bool {
	select {
	case s.updates <- upd:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *wsStream) fail(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	select {
	case s.errc <- err:
	default:
	}
}

func (s *wsStream) Recv(ctx context.Context) (stream.Update, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case upd := <-s.updates:
		return upd, nil
	case err := <-s.errc:
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: subscription cancelled", stream.ErrStreamDisconnected)
		}
		return nil, fmt.Errorf("%w: %v", stream.ErrStreamDisconnected, err)
	}
}

func (s *wsStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.accSub.Unsubscribe()
		s.slotSub.Unsubscribe()
		s.client.Close()
		s.wg.Wait()
	})
	return nil
}
