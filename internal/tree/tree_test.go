package tree

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sudo-init-do/binaryhub/internal/models"
	"github.com/sudo-init-do/binaryhub/internal/repository"
	"github.com/sudo-init-do/binaryhub/internal/testutil"
)

func inTx(t *testing.T, store models.Store, fn func(tx models.Tx) error) {
	t.Helper()
	if err := store.WithTx(context.Background(), fn); err != nil {
		t.Fatalf("WithTx() error: %v", err)
	}
}

func names(ps []*models.Participant) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Username
	}
	return out
}

func TestAncestors(t *testing.T) {
	store := repository.NewMemory()
	testutil.Seed(t, store,
		testutil.Node{Username: "root"},
		testutil.Node{Username: "a", Sponsor: "root", Side: models.SideLeft},
		testutil.Node{Username: "b", Sponsor: "a", Side: models.SideRight},
		testutil.Node{Username: "c", Sponsor: "b", Side: models.SideLeft},
	)
	tr := New(DefaultMaxDepth, false)

	inTx(t, store, func(tx models.Tx) error {
		chain, err := tr.Ancestors(context.Background(), tx, "c")
		if err != nil {
			return err
		}
		if got := fmt.Sprint(names(chain)); got != "[b a root]" {
			t.Errorf("Ancestors(c) = %s, want [b a root]", got)
		}

		chain, err = tr.Ancestors(context.Background(), tx, "root")
		if err != nil {
			return err
		}
		if len(chain) != 0 {
			t.Errorf("Ancestors(root) = %v, want empty", names(chain))
		}
		return nil
	})
}

func TestAncestors_FailsOpen(t *testing.T) {
	store := repository.NewMemory()
	testutil.Seed(t, store,
		// x and y sponsor each other.
		testutil.Node{Username: "x", Sponsor: "y", Side: models.SideLeft},
		testutil.Node{Username: "y", Sponsor: "x", Side: models.SideLeft},
		testutil.Node{Username: "orphan", Sponsor: "ghost", Side: models.SideRight},
		testutil.Node{Username: "d0"},
		testutil.Node{Username: "d1", Sponsor: "d0", Side: models.SideLeft},
		testutil.Node{Username: "d2", Sponsor: "d1", Side: models.SideLeft},
		testutil.Node{Username: "d3", Sponsor: "d2", Side: models.SideLeft},
	)

	inTx(t, store, func(tx models.Tx) error {
		ctx := context.Background()
		chain, err := New(DefaultMaxDepth, false).Ancestors(ctx, tx, "x")
		if err != nil {
			t.Fatalf("cycle: Ancestors() error: %v", err)
		}
		if got := fmt.Sprint(names(chain)); got != "[y]" {
			t.Errorf("cycle: Ancestors(x) = %s, want [y]", got)
		}

		chain, err = New(DefaultMaxDepth, false).Ancestors(ctx, tx, "orphan")
		if err != nil || len(chain) != 0 {
			t.Errorf("dangling sponsor: Ancestors() = %v, %v, want empty", names(chain), err)
		}

		chain, err = New(2, false).Ancestors(ctx, tx, "d3")
		if err != nil {
			t.Fatalf("bounded: Ancestors() error: %v", err)
		}
		if got := fmt.Sprint(names(chain)); got != "[d2 d1]" {
			t.Errorf("bounded: Ancestors(d3) = %s, want [d2 d1]", got)
		}
		return nil
	})
}

func TestResolve_NotFound(t *testing.T) {
	store := repository.NewMemory()
	inTx(t, store, func(tx models.Tx) error {
		_, err := New(0, false).Resolve(context.Background(), tx, "nobody")
		if !errors.Is(err, models.ErrNotFound) {
			t.Errorf("Resolve() error = %v, want not found", err)
		}
		return nil
	})
}

func TestDescendants(t *testing.T) {
	store := repository.NewMemory()
	testutil.Seed(t, store,
		testutil.Node{Username: "root"},
		testutil.Node{Username: "a", Sponsor: "root", Side: models.SideLeft},
		testutil.Node{Username: "b", Sponsor: "root", Side: models.SideRight},
		testutil.Node{Username: "a1", Sponsor: "a", Side: models.SideLeft},
		testutil.Node{Username: "b1", Sponsor: "b", Side: models.SideLeft},
	)
	tr := New(DefaultMaxDepth, false)

	inTx(t, store, func(tx models.Tx) error {
		var got []string
		for p, err := range tr.Descendants(context.Background(), tx, "root") {
			if err != nil {
				return err
			}
			got = append(got, p.Username)
		}
		if fmt.Sprint(got) != "[a b a1 b1]" {
			t.Errorf("Descendants(root) = %v, want breadth-first [a b a1 b1]", got)
		}

		// Stopping early must not walk further.
		var first []string
		for p, err := range tr.Descendants(context.Background(), tx, "root") {
			if err != nil {
				return err
			}
			first = append(first, p.Username)
			if len(first) == 2 {
				break
			}
		}
		if fmt.Sprint(first) != "[a b]" {
			t.Errorf("early stop = %v, want [a b]", first)
		}
		return nil
	})
}

func TestPlace(t *testing.T) {
	store := repository.NewMemory()
	testutil.Seed(t, store,
		testutil.Node{Username: "root"},
		testutil.Node{Username: "a", Sponsor: "root", Side: models.SideLeft},
	)

	tests := []struct {
		name       string
		singleSlot bool
		p          models.Participant
		want       error
	}{
		{"root", false, models.Participant{Username: "r2"}, nil},
		{"missing username", false, models.Participant{}, models.ErrUsernameRequired},
		{"side without sponsor", false, models.Participant{Username: "x", Side: models.SideLeft}, models.ErrSponsorSide},
		{"sponsor without side", false, models.Participant{Username: "x", Sponsor: "root"}, models.ErrSponsorSide},
		{"bad side", false, models.Participant{Username: "x", Sponsor: "root", Side: "up"}, models.ErrInvalidSide},
		{"unknown sponsor", false, models.Participant{Username: "x", Sponsor: "ghost", Side: models.SideLeft}, models.ErrNotFound},
		{"shared slot allowed", false, models.Participant{Username: "x", Sponsor: "root", Side: models.SideLeft}, nil},
		{"single slot taken", true, models.Participant{Username: "x", Sponsor: "root", Side: models.SideLeft}, models.ErrSideOccupied},
		{"single slot free", true, models.Participant{Username: "x", Sponsor: "root", Side: models.SideRight}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inTx(t, store, func(tx models.Tx) error {
				err := New(0, tt.singleSlot).Place(context.Background(), tx, &tt.p)
				if tt.want == nil && err != nil {
					t.Errorf("Place() error: %v", err)
				}
				if tt.want != nil && !errors.Is(err, tt.want) {
					t.Errorf("Place() error = %v, want %v", err, tt.want)
				}
				return nil
			})
		})
	}
}

func TestSubtreeStats(t *testing.T) {
	store := repository.NewMemory()
	testutil.Seed(t, store,
		testutil.Node{Username: "root"},
		testutil.Node{Username: "a", Sponsor: "root", Side: models.SideLeft, Active: true},
		testutil.Node{Username: "a1", Sponsor: "a", Side: models.SideRight},
		testutil.Node{Username: "a2", Sponsor: "a1", Side: models.SideRight, Active: true},
		testutil.Node{Username: "b", Sponsor: "root", Side: models.SideRight},
	)
	tr := New(0, false)

	inTx(t, store, func(tx models.Tx) error {
		members, active, err := tr.SubtreeStats(context.Background(), tx, "root", models.SideLeft)
		if err != nil {
			return err
		}
		if members != 3 || active != 2 {
			t.Errorf("left = %d/%d, want 3/2", members, active)
		}
		members, active, err = tr.SubtreeStats(context.Background(), tx, "root", models.SideRight)
		if err != nil {
			return err
		}
		if members != 1 || active != 0 {
			t.Errorf("right = %d/%d, want 1/0", members, active)
		}
		return nil
	})
}
