package search

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/zkimio/zkim-core/internal/bucket"
)

// AccessLevel is the derived visibility of a file to a particular
// querying user.
type AccessLevel int

const (
	// AccessNone means the file is invisible to searches entirely.
	AccessNone AccessLevel = iota
	// AccessMetadata means the file appears in results but its
	// plaintext body is not returned.
	AccessMetadata
	// AccessFull means the querying user may read the file.
	AccessFull
)

// AccessControl mirrors the optional accessControl metadata field.
type AccessControl struct {
	ReadAccess   []string
	WriteAccess  []string
	DeleteAccess []string
}

// DeriveAccessLevel implements spec §4.4's access-level rules:
// no accessControl -> none; user present in readAccess -> full; user
// absent from a present readAccess -> metadata.
func DeriveAccessLevel(ac *AccessControl, userID string) AccessLevel {
	if ac == nil {
		return AccessNone
	}
	for _, u := range ac.ReadAccess {
		if u == userID {
			return AccessFull
		}
	}
	return AccessMetadata
}

// FileMetadataView is the subset of file metadata the Search Index
// needs at indexing time.
type FileMetadataView struct {
	FileName     string
	MimeType     string
	Tags         []string
	CustomFields map[string]string
	Body         string
}

// Entry is a per-file search index entry (§3 Search index entry).
type Entry struct {
	FileID    string
	OwnerID   string
	Access    *AccessControl
	Trapdoors map[string]bool // set of trapdoor bytes, keyed by string(bytes)
	FileName  string
	Tags      []string
	Custom    map[string]string
}

// ErrSearchableEncryptionDisabled indicates a query arrived while
// searchable encryption is disabled for the service instance.
var ErrSearchableEncryptionDisabled = errors.New("searchable encryption disabled")

// Index is the in-memory privacy-preserving search index. Re-indexing
// an existing fileId atomically replaces its entry.
type Index struct {
	mu      sync.RWMutex
	key     *OPRFKey
	entries map[string]*Entry
	limiter *RateLimiter
}

// NewIndex creates an index with its own OPRF key and rate limiter.
func NewIndex(key *OPRFKey, maxQueriesPerEpoch int) *Index {
	return &Index{
		key:     key,
		entries: make(map[string]*Entry),
		limiter: NewRateLimiter(maxQueriesPerEpoch),
	}
}

// IndexFile computes trapdoors for fileID's token set and records (or
// atomically replaces) its entry.
func (idx *Index) IndexFile(fileID, ownerID string, access *AccessControl, fields FileMetadataView) error {
	tokens := ExtractTokens(SearchableFields{
		FileName:     fields.FileName,
		MimeType:     fields.MimeType,
		Tags:         fields.Tags,
		CustomFields: fields.CustomFields,
		Body:         fields.Body,
	})

	trapdoors := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		td, err := idx.key.Evaluate(t)
		if err != nil {
			return err
		}
		trapdoors[string(td)] = true
	}

	entry := &Entry{
		FileID:    fileID,
		OwnerID:   ownerID,
		Access:    access,
		Trapdoors: trapdoors,
		FileName:  fields.FileName,
		Tags:      fields.Tags,
		Custom:    fields.CustomFields,
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.entries[fileID] = entry
	return nil
}

// RemoveFile drops fileID's entry.
func (idx *Index) RemoveFile(fileID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.entries, fileID)
}

// Result is one match from Search.
type Result struct {
	FileID    string
	Access    AccessLevel
	Relevance int
	Padding   bool // synthetic entry added to reach a padded bucket size; not exposed externally
}

// Search evaluates query's trapdoor under the index's OPRF key and
// returns candidates ranked by relevance, filtered by access.
func (idx *Index) Search(query, userID string, epoch int64, limit int) ([]Result, error) {
	if !idx.limiter.Allow(userID, epoch) {
		return nil, ErrRateLimitExceeded
	}

	queryTrapdoor, err := idx.key.Evaluate(strings.ToLower(query))
	if err != nil {
		return nil, err
	}
	key := string(queryTrapdoor)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var results []Result
	for _, entry := range idx.entries {
		level := DeriveAccessLevel(entry.Access, userID)
		if level == AccessNone {
			continue
		}
		if !entry.Trapdoors[key] {
			continue
		}

		results = append(results, Result{
			FileID:    entry.FileID,
			Access:    level,
			Relevance: relevanceScore(entry, query),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Relevance != results[j].Relevance {
			return results[i].Relevance > results[j].Relevance
		}
		return results[i].FileID < results[j].FileID
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

func relevanceScore(entry *Entry, query string) int {
	score := 0
	lowerQuery := strings.ToLower(query)

	if strings.Contains(strings.ToLower(entry.FileName), lowerQuery) {
		score++
	}
	for _, tag := range entry.Tags {
		if strings.EqualFold(tag, query) {
			score++
		}
	}
	for _, v := range entry.Custom {
		if strings.Contains(strings.ToLower(v), lowerQuery) {
			score++
			break
		}
	}
	return score
}

// PadResults pads results up to the smallest configured bucket size
// >= len(results) with synthetic padding entries, per spec §4.4.
func PadResults(sizes []int, results []Result) []Result {
	target := bucket.Next(sizes, len(results))
	if target <= len(results) {
		return results
	}

	padded := make([]Result, len(results), target)
	copy(padded, results)
	for len(padded) < target {
		padded = append(padded, Result{Padding: true})
	}
	return padded
}

// StripPadding removes synthetic padding entries, the default
// behavior for callers that want only real results.
func StripPadding(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if !r.Padding {
			out = append(out, r)
		}
	}
	return out
}

