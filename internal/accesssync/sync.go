// Package accesssync keeps the door access database in line with MakerAdmin.
//
// A sync logs in to MakerAdmin, optionally ships pending lab access orders, fetches the
// members with keys, reads the users of one customer from the access database and shows
// the operator what differs. Each kind of change is applied only after the operator
// confirms it.
package accesssync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/makerspace/makeradmin/internal/lib/sl"
	"github.com/makerspace/makeradmin/internal/models"
)

// Kinds of work a sync can do.
const (
	WhatOrders = "orders"
	WhatUpdate = "update"
	WhatAdd    = "add"
	WhatBlock  = "block"
)

// AllWhat lists every kind in the order they run.
var AllWhat = []string{WhatOrders, WhatUpdate, WhatAdd, WhatBlock}

// What is the set of kinds selected for a sync.
type What map[string]bool

// ParseWhat parses a comma separated list of kinds. Unknown kinds are an error.
func ParseWhat(s string) (What, error) {
	what := What{}
	for _, w := range strings.Split(s, ",") {
		w = strings.TrimSpace(w)
		if w == "" {
			continue
		}
		if !slices.Contains(AllWhat, w) {
			return nil, fmt.Errorf("unknown argument %q to what, expected some of %s", w, strings.Join(AllWhat, ","))
		}
		what[w] = true
	}
	if len(what) == 0 {
		return nil, errors.New("nothing selected to sync")
	}
	return what, nil
}

// AccessStore is the access database as seen by the sync.
type AccessStore interface {
	Users(ctx context.Context, customerID int64) ([]User, error)
	AddUser(ctx context.Context, u User, authorityID int64) (int64, error)
	UpdateUser(ctx context.Context, u User) error
	BlockUser(ctx context.Context, id int64) error
}

// Config selects the customer and authority users are synced into.
type Config struct {
	CustomerID   int64
	AuthorityID  int64
	LoginRetries uint64
}

// Syncer runs syncs.
type Syncer struct {
	client  Client
	store   AccessStore
	ui      UI
	log     *slog.Logger
	cfg     Config
	today   func() models.Date
	backoff func() backoff.BackOff
}

// NewSyncer returns a Syncer.
func NewSyncer(client Client, store AccessStore, ui UI, cfg Config, log *slog.Logger) *Syncer {
	if cfg.LoginRetries == 0 {
		cfg.LoginRetries = 5
	}
	return &Syncer{
		client: client,
		store:  store,
		ui:     ui,
		log:    log,
		cfg:    cfg,
		today:  func() models.Date { return models.DateOf(time.Now()) },
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			return b
		},
	}
}

// Run performs one sync of the selected kinds.
func (s *Syncer) Run(ctx context.Context, what What) error {
	const op = "accesssync.Run"
	log := s.log.With(sl.Op(op))

	if err := s.ensureLoggedIn(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if what[WhatOrders] {
		if err := s.client.ShipOrders(ctx, s.ui); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	var (
		members []models.AccessMember
		users   []User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		members, err = s.client.FetchMembers(gctx, s.ui)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.store.Users(gctx, s.cfg.CustomerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("data loaded", slog.Int("members", len(members)), slog.Int("users", len(users)))

	diff := ComputeDiff(members, users, s.today())
	if diff.Empty() {
		s.ui.Info("access database is up to date")
		return nil
	}
	s.show(diff)

	if what[WhatUpdate] && len(diff.Updates) > 0 {
		if err := s.confirmAndApply(ctx, fmt.Sprintf("Update %d users?", len(diff.Updates)), func() error {
			return s.applyUpdates(ctx, diff.Updates)
		}); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if what[WhatAdd] && len(diff.Adds) > 0 {
		if err := s.confirmAndApply(ctx, fmt.Sprintf("Add %d users?", len(diff.Adds)), func() error {
			return s.applyAdds(ctx, diff.Adds)
		}); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	if what[WhatBlock] && len(diff.Blocks) > 0 {
		if err := s.confirmAndApply(ctx, fmt.Sprintf("Block %d users?", len(diff.Blocks)), func() error {
			return s.applyBlocks(ctx, diff.Blocks)
		}); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

// ensureLoggedIn logs in with exponential backoff. Wrong credentials are retried too since
// every attempt asks the operator again; running out of input stops at once.
func (s *Syncer) ensureLoggedIn(ctx context.Context) error {
	if s.client.IsLoggedIn() {
		return nil
	}
	b := backoff.WithContext(backoff.WithMaxRetries(s.backoff(), s.cfg.LoginRetries), ctx)
	return backoff.Retry(func() error {
		err := s.client.Login(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !retryableLogin(err) {
			return backoff.Permanent(err)
		}
		s.log.Warn("login failed", sl.Err(err))
		s.ui.Info("login failed: " + err.Error())
		return err
	}, b)
}

func retryableLogin(err error) bool {
	return !errors.Is(err, io.EOF)
}

func (s *Syncer) confirmAndApply(ctx context.Context, question string, apply func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ok, err := s.ui.Confirm(question)
	if err != nil {
		return err
	}
	if !ok {
		s.ui.Info("skipped")
		return nil
	}
	return apply()
}

func (s *Syncer) show(d Diff) {
	for _, u := range d.Updates {
		s.ui.Info(fmt.Sprintf("update #%d %s: %s", u.Member.MemberNumber, fullName(u.Member), u.Change))
	}
	for _, a := range d.Adds {
		s.ui.Info(fmt.Sprintf("add    #%d %s: card %s, stop %s", a.Member.MemberNumber, fullName(a.Member),
			cardOf(a.Member), formatDate(a.Member.EndDate)))
	}
	for _, b := range d.Blocks {
		s.ui.Info(fmt.Sprintf("block  #%d %s: %s", b.User.MemberNumber, b.User.Name, b.Reason))
	}
}

func (s *Syncer) applyUpdates(ctx context.Context, updates []UpdateUser) error {
	today := s.today()
	for _, u := range updates {
		user := u.User
		if card := cardOf(u.Member); card != "" {
			user.Card = card
		}
		user.StopDate = u.Member.EndDate
		user.Name = fullName(u.Member)
		if isActive(u.Member, today) {
			user.Blocked = false
		}
		if err := s.store.UpdateUser(ctx, user); err != nil {
			return err
		}
	}
	s.ui.Info(fmt.Sprintf("updated %d users", len(updates)))
	return nil
}

func (s *Syncer) applyAdds(ctx context.Context, adds []AddUser) error {
	for _, a := range adds {
		_, err := s.store.AddUser(ctx, User{
			CustomerID:   s.cfg.CustomerID,
			MemberNumber: a.Member.MemberNumber,
			Name:         fullName(a.Member),
			Card:         cardOf(a.Member),
			StopDate:     a.Member.EndDate,
		}, s.cfg.AuthorityID)
		if err != nil {
			return err
		}
	}
	s.ui.Info(fmt.Sprintf("added %d users", len(adds)))
	return nil
}

func (s *Syncer) applyBlocks(ctx context.Context, blocks []BlockUser) error {
	for _, b := range blocks {
		if err := s.store.BlockUser(ctx, b.User.ID); err != nil {
			return err
		}
	}
	s.ui.Info(fmt.Sprintf("blocked %d users", len(blocks)))
	return nil
}
