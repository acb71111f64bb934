package trading

import (
	"context"
	"strings"

	"github.com/pawdex/pawdex/pawdex/database/models"
	"github.com/sahilm/fuzzy"
)

// listingSource implements fuzzy.Source over listing breed snapshots.
type listingSource []*models.Listing

func (s listingSource) String(i int) string {
	return s[i].Breed
}

func (s listingSource) Len() int {
	return len(s)
}

// SearchListings fuzzy-matches active listings from other users by breed
// name, best match first. An empty query falls back to the plain browse
// snapshot.
func (s *Service) SearchListings(ctx context.Context, userID, query string) ([]*models.Listing, error) {
	all, err := s.registry.BrowseExcept(ctx, userID)
	if err != nil {
		return nil, err
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return all, nil
	}

	matches := fuzzy.FindFrom(query, listingSource(all))
	results := make([]*models.Listing, 0, len(matches))
	for _, m := range matches {
		results = append(results, all[m.Index])
	}
	return results, nil
}
