// Package tree resolves sponsor relationships. The sponsor link is a weak
// reference by username with no database-level cycle protection, so every walk
// is an explicit bounded loop with a visited set.
package tree

import (
	"context"
	"fmt"
	"iter"

	"github.com/sudo-init-do/binaryhub/internal/models"
)

// DefaultMaxDepth bounds upline walks.
const DefaultMaxDepth = 20

type Tree struct {
	maxDepth   int
	singleSlot bool
}

// New returns a Tree. With singleSlot set, Place rejects a second participant
// on the same sponsor side.
func New(maxDepth int, singleSlot bool) *Tree {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Tree{maxDepth: maxDepth, singleSlot: singleSlot}
}

// MaxDepth is the upline walk bound.
func (t *Tree) MaxDepth() int {
	return t.maxDepth
}

// Resolve looks a participant up by username.
func (t *Tree) Resolve(ctx context.Context, repo models.ParticipantRepository, username string) (*models.Participant, error) {
	if username == "" {
		return nil, models.ErrUsernameRequired
	}
	p, err := repo.GetParticipantByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", username, err)
	}
	return p, nil
}

// Ancestors returns the sponsor chain of username, immediate sponsor first.
func (t *Tree) Ancestors(ctx context.Context, repo models.ParticipantRepository, username string) ([]*models.Participant, error) {
	start, err := t.Resolve(ctx, repo, username)
	if err != nil {
		return nil, err
	}
	return t.AncestorsOf(ctx, repo, start)
}

// AncestorsOf walks up from p. The walk stops without error at the depth
// bound, at a cycle, or at a sponsor name that no longer resolves.
func (t *Tree) AncestorsOf(ctx context.Context, repo models.ParticipantRepository, p *models.Participant) ([]*models.Participant, error) {
	visited := map[string]bool{p.ID: true}
	var chain []*models.Participant

	cur := p
	for depth := 0; depth < t.maxDepth && !cur.IsRoot(); depth++ {
		sponsor, err := repo.GetParticipantByUsername(ctx, cur.Sponsor)
		if err != nil {
			if models.IsNotFound(err) {
				break
			}
			return nil, fmt.Errorf("sponsor of %q: %w", cur.Username, err)
		}
		if visited[sponsor.ID] {
			break
		}
		visited[sponsor.ID] = true
		chain = append(chain, sponsor)
		cur = sponsor
	}
	return chain, nil
}

// Descendants lazily yields the downline of username breadth-first. Children
// are loaded only as the consumer pulls; a participant is yielded at most once.
func (t *Tree) Descendants(ctx context.Context, repo models.ParticipantRepository, username string) iter.Seq2[*models.Participant, error] {
	return func(yield func(*models.Participant, error) bool) {
		root, err := t.Resolve(ctx, repo, username)
		if err != nil {
			yield(nil, err)
			return
		}
		visited := map[string]bool{root.ID: true}
		walk(ctx, repo, []string{root.Username}, visited, yield)
	}
}

func walk(ctx context.Context, repo models.ParticipantRepository, queue []string, visited map[string]bool, yield func(*models.Participant, error) bool) {
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		children, err := repo.ListChildren(ctx, name)
		if err != nil {
			yield(nil, fmt.Errorf("children of %q: %w", name, err))
			return
		}
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			if !yield(c, nil) {
				return
			}
			queue = append(queue, c.Username)
		}
	}
}

// Place validates a new participant's position before it is stored.
func (t *Tree) Place(ctx context.Context, repo models.ParticipantRepository, p *models.Participant) error {
	if err := p.CheckPlacement(); err != nil {
		return err
	}
	if p.IsRoot() {
		return nil
	}
	if _, err := t.Resolve(ctx, repo, p.Sponsor); err != nil {
		return fmt.Errorf("%w: sponsor: %w", models.ErrValidation, err)
	}
	if !t.singleSlot {
		return nil
	}
	children, err := repo.ListChildren(ctx, p.Sponsor)
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.Side == p.Side {
			return fmt.Errorf("%w (%s of %q)", models.ErrSideOccupied, p.Side, p.Sponsor)
		}
	}
	return nil
}

// SubtreeStats counts the members hanging off one side of username.
func (t *Tree) SubtreeStats(ctx context.Context, repo models.ParticipantRepository, username string, side models.Side) (members, active int, err error) {
	root, err := t.Resolve(ctx, repo, username)
	if err != nil {
		return 0, 0, err
	}
	children, err := repo.ListChildren(ctx, root.Username)
	if err != nil {
		return 0, 0, err
	}

	visited := map[string]bool{root.ID: true}
	var queue []string
	for _, c := range children {
		if c.Side != side || visited[c.ID] {
			continue
		}
		visited[c.ID] = true
		members++
		if c.Active {
			active++
		}
		queue = append(queue, c.Username)
	}

	walk(ctx, repo, queue, visited, func(p *models.Participant, werr error) bool {
		if werr != nil {
			err = werr
			return false
		}
		members++
		if p.Active {
			active++
		}
		return true
	})
	if err != nil {
		return 0, 0, err
	}
	return members, active, nil
}
