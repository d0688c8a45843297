// Package settings holds the operator-editable texts and the process-wide
// maintenance state.
package settings

import (
	"context"
	"errors"
	"sync"

	"github.com/wdesk/groupbroker/internal/pricing"
	"github.com/wdesk/groupbroker/internal/store"
)

const (
	KeyWelcome     = "welcome_message"
	KeyChannel     = "mandatory_channel"
	KeyPriceList   = "price_list"
	keyMaintenance = "maintenance"
)

const (
	defaultWelcome   = "Welcome! Use the menu below to start."
	defaultChannel   = "@WDDesire"
	DefaultPriceList = "📦 Today's Price\n" +
		"• 2016-22:      ₹1035.00/$11.50\n" +
		"• 2023:         ₹810.00/$9.00\n" +
		"• Jan-Feb 2024: ₹360.00/$4.00\n" +
		"• Mar 2024:     ₹405.00/$4.50\n" +
		"• Apr 2024:     ₹315.00/$3.50"
)

var ErrUnknownKey = errors.New("unknown setting")

// Service reads and writes settings through the store. Maintenance is kept
// as an in-process value behind an accessor: Load fixes it at startup,
// SetMaintenance updates memory and persists the durable mirror in the same
// call.
type Service struct {
	store store.Store

	mu          sync.RWMutex
	maintenance bool
}

func New(st store.Store) *Service {
	return &Service{store: st}
}

// Load seeds missing defaults and pulls the maintenance mirror into memory.
func (s *Service) Load(ctx context.Context) error {
	defaults := map[string]string{
		KeyWelcome:   defaultWelcome,
		KeyChannel:   defaultChannel,
		KeyPriceList: DefaultPriceList,
	}
	for key, value := range defaults {
		_, err := s.store.GetSetting(ctx, key)
		if errors.Is(err, store.ErrNotFound) {
			err = s.store.SetSetting(ctx, key, value)
		}
		if err != nil {
			return err
		}
	}

	mirror, err := s.store.GetSetting(ctx, keyMaintenance)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	s.mu.Lock()
	s.maintenance = mirror == "1"
	s.mu.Unlock()
	return nil
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	if !knownKey(key) {
		return "", ErrUnknownKey
	}
	return s.store.GetSetting(ctx, key)
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	if !knownKey(key) {
		return ErrUnknownKey
	}
	return s.store.SetSetting(ctx, key, value)
}

// Tiers parses the current price table. A missing or unreadable setting
// yields an empty table, which quotes at zero rather than failing the flow.
func (s *Service) Tiers(ctx context.Context) []pricing.Tier {
	text, err := s.store.GetSetting(ctx, KeyPriceList)
	if err != nil {
		return nil
	}
	return pricing.Parse(text)
}

func (s *Service) Maintenance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maintenance
}

func (s *Service) SetMaintenance(ctx context.Context, on bool) error {
	mirror := "0"
	if on {
		mirror = "1"
	}
	if err := s.store.SetSetting(ctx, keyMaintenance, mirror); err != nil {
		return err
	}
	s.mu.Lock()
	s.maintenance = on
	s.mu.Unlock()
	return nil
}

func knownKey(key string) bool {
	switch key {
	case KeyWelcome, KeyChannel, KeyPriceList:
		return true
	}
	return false
}
