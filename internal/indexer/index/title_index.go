package index

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/keys"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/movieindex/internal/movie"
)

// TitleIndex maps title words to the documents and row offsets they occur at.
type TitleIndex struct {
	fieldIndex[*DocPostings]
}

// NewTitleIndex creates an empty title-word index.
func NewTitleIndex(opts ...Option) *TitleIndex {
	return &TitleIndex{fieldIndex: newFieldIndex[*DocPostings]("title", opts)}
}

// IndexTitleWord records rowOffset in docID for every word of title. Words
// are case-folded and split on whitespace. A failure part way through leaves
// the earlier words indexed; callers should stop ingesting the batch.
func (t *TitleIndex) IndexTitleWord(docID uint64, rowOffset int, title string) error {
	if t.closed {
		return ErrClosed
	}
	for _, word := range tokenizer.TokenizeTitle(title) {
		dp, err := t.bucketFor(keys.ForText(word), textSource(word), func() *DocPostings {
			return newDocPostings(word)
		})
		if err != nil {
			return fmt.Errorf("indexing title word %q: %w", word, err)
		}
		dp.ListFor(docID).Append(rowOffset)
	}
	return nil
}

// IndexMovieTitle indexes the words of m's title like IndexTitleWord and adds
// m to the flat record list. A movie without a title is only added to the
// list.
func (t *TitleIndex) IndexMovieTitle(m *movie.Movie, docID uint64, rowOffset int) error {
	if title, ok := m.Title().Get(); ok {
		if err := t.IndexTitleWord(docID, rowOffset, title); err != nil {
			return err
		}
	} else if t.closed {
		return ErrClosed
	}
	return t.addToAll(m)
}

// Lookup returns the postings of a title word. The term is case-folded
// first. The returned value is the index's own, not a copy.
func (t *TitleIndex) Lookup(term string) (*DocPostings, bool) {
	word := tokenizer.Normalize(term)
	return t.lookup(keys.ForText(word), textSource(word))
}

// Find is Lookup returning ErrNotFound instead of a boolean.
func (t *TitleIndex) Find(term string) (*DocPostings, error) {
	dp, ok := t.Lookup(term)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, term)
	}
	return dp, nil
}
