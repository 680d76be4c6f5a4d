package dkg

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"tessnet-demo/lib/logger"
	"tessnet-demo/modules/profiles"

	keyGenSecp256k1 "github.com/bnb-chain/tss-lib/v2/ecdsa/keygen"
	keyGenEddsa "github.com/bnb-chain/tss-lib/v2/eddsa/keygen"
	btss "github.com/bnb-chain/tss-lib/v2/tss"
	"github.com/decred/dcrd/dcrec/edwards/v2"
	"github.com/eager7/dogd/btcec"
)

const preParamsTimeout = 2 * time.Minute

// LocalSession hosts every keygen party in process and plays postman
// between them. It exists so the demo can run a real round without any
// networking between participants.
type LocalSession struct {
	scheme    string
	names     []string
	threshold int
	log       logger.Logger
}

func NewLocalSession(scheme string, names []string, threshold int, log logger.Logger) (*LocalSession, error) {
	if scheme != profiles.SchemeEcdsa && scheme != profiles.SchemeEddsa {
		return nil, fmt.Errorf("unknown signing scheme %s", scheme)
	}
	if len(names) < 2 {
		return nil, fmt.Errorf("keygen needs at least 2 parties, got %d", len(names))
	}
	if threshold < 1 || threshold >= len(names) {
		return nil, fmt.Errorf("threshold %d invalid for %d parties", threshold, len(names))
	}
	return &LocalSession{
		scheme:    scheme,
		names:     names,
		threshold: threshold,
		log:       log,
	}, nil
}

func (s *LocalSession) partyIds() (btss.SortedPartyIDs, map[string]string) {
	pIds := make([]*btss.PartyID, 0)
	for _, name := range s.names {
		i := big.NewInt(0)
		i = i.SetBytes([]byte(name))

		pIds = append(pIds, btss.NewPartyID(name, "keygen", i))
	}
	sorted := btss.SortPartyIDs(pIds)

	keyToName := map[string]string{}
	for _, pid := range sorted {
		keyToName[pid.KeyInt().String()] = pid.Id
	}
	return sorted, keyToName
}

// Run blocks until every party finishes its rounds, then returns the
// shared group key plus each party's save data.
func (s *LocalSession) Run(ctx context.Context) (*Output, error) {
	sorted, keyToName := s.partyIds()
	p2pCtx := btss.NewPeerContext(sorted)

	switch s.scheme {
	case profiles.SchemeEcdsa:
		return s.runEcdsa(ctx, sorted, p2pCtx, keyToName)
	default:
		return s.runEddsa(ctx, sorted, p2pCtx, keyToName)
	}
}

func (s *LocalSession) runEcdsa(ctx context.Context, sorted btss.SortedPartyIDs, p2pCtx *btss.PeerContext, keyToName map[string]string) (*Output, error) {
	pl := len(sorted)
	outCh := make(chan btss.Message, pl*pl*4)
	endCh := make(chan *keyGenSecp256k1.LocalPartySaveData, pl)
	errCh := make(chan *btss.Error, pl*pl)

	// safe prime generation dominates runtime, run it for all parties at once
	preParamsCh := make(chan *keyGenSecp256k1.LocalPreParams, pl)
	genErrCh := make(chan error, pl)
	for range sorted {
		go func() {
			preParams, err := keyGenSecp256k1.GeneratePreParams(preParamsTimeout)
			if err != nil {
				genErrCh <- err
				return
			}
			preParamsCh <- preParams
		}()
	}

	parties := map[string]btss.Party{}
	for _, pid := range sorted {
		var preParams *keyGenSecp256k1.LocalPreParams
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-genErrCh:
			return nil, fmt.Errorf("failed to generate pre params: %w", err)
		case preParams = <-preParamsCh:
		}

		params := btss.NewParameters(btss.S256(), p2pCtx, pid, pl, s.threshold)
		parties[pid.Id] = keyGenSecp256k1.NewLocalParty(params, outCh, endCh, *preParams)
	}
	s.startAll(parties, errCh)

	var groupKey []byte
	shares := map[string][]byte{}
	for len(shares) < pl {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-errCh:
			return nil, fmt.Errorf("keygen party failed: %w", err)
		case msg := <-outCh:
			if err := s.route(msg, parties, errCh); err != nil {
				return nil, err
			}
		case save := <-endCh:
			if groupKey == nil {
				pk := save.ECDSAPub
				pubKey := btcec.PublicKey{
					Curve: btss.S256(),
					X:     pk.X(),
					Y:     pk.Y(),
				}
				groupKey = pubKey.SerializeCompressed()
			}
			data, err := json.Marshal(save)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize save data: %w", err)
			}
			shares[keyToName[save.ShareID.String()]] = data
		}
	}

	return &Output{Scheme: s.scheme, GroupPubKey: groupKey, Shares: shares}, nil
}

func (s *LocalSession) runEddsa(ctx context.Context, sorted btss.SortedPartyIDs, p2pCtx *btss.PeerContext, keyToName map[string]string) (*Output, error) {
	pl := len(sorted)
	outCh := make(chan btss.Message, pl*pl*4)
	endCh := make(chan *keyGenEddsa.LocalPartySaveData, pl)
	errCh := make(chan *btss.Error, pl*pl)

	parties := map[string]btss.Party{}
	for _, pid := range sorted {
		params := btss.NewParameters(btss.Edwards(), p2pCtx, pid, pl, s.threshold)
		parties[pid.Id] = keyGenEddsa.NewLocalParty(params, outCh, endCh)
	}
	s.startAll(parties, errCh)

	var groupKey []byte
	shares := map[string][]byte{}
	for len(shares) < pl {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case err := <-errCh:
			return nil, fmt.Errorf("keygen party failed: %w", err)
		case msg := <-outCh:
			if err := s.route(msg, parties, errCh); err != nil {
				return nil, err
			}
		case save := <-endCh:
			if groupKey == nil {
				publicKey := edwards.NewPublicKey(save.EDDSAPub.X(), save.EDDSAPub.Y())
				groupKey = publicKey.SerializeCompressed()
			}
			data, err := json.Marshal(save)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize save data: %w", err)
			}
			shares[keyToName[save.ShareID.String()]] = data
		}
	}

	return &Output{Scheme: s.scheme, GroupPubKey: groupKey, Shares: shares}, nil
}

func (s *LocalSession) startAll(parties map[string]btss.Party, errCh chan<- *btss.Error) {
	for _, party := range parties {
		go func(party btss.Party) {
			if err := party.Start(); err != nil {
				errCh <- err
			}
		}(party)
	}
}

// route fans a round message out to its recipients. Delivery happens on
// fresh goroutines since UpdateFromBytes can itself emit messages.
func (s *LocalSession) route(msg btss.Message, parties map[string]btss.Party, errCh chan<- *btss.Error) error {
	wireBytes, _, err := msg.WireBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize round message: %w", err)
	}
	from := msg.GetFrom()

	if msg.IsBroadcast() {
		s.log.Debug("keygen broadcast from", from.Id)
		for id, party := range parties {
			if id == from.Id {
				continue
			}
			go deliver(party, wireBytes, from, true, errCh)
		}
		return nil
	}

	for _, to := range msg.GetTo() {
		s.log.Debug("keygen direct message", from.Id, "->", to.Id)
		party, ok := parties[to.Id]
		if !ok {
			return fmt.Errorf("round message addressed to unknown party %s", to.Id)
		}
		go deliver(party, wireBytes, from, false, errCh)
	}
	return nil
}

func deliver(party btss.Party, wireBytes []byte, from *btss.PartyID, broadcast bool, errCh chan<- *btss.Error) {
	if _, err := party.UpdateFromBytes(wireBytes, from, broadcast); err != nil {
		errCh <- err
	}
}
