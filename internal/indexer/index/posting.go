package index

import "sort"

// PostingList is the ordered list of row offsets at which a title word occurs
// within one document. Offsets may repeat.
type PostingList struct {
	offsets []int
}

// Append adds an offset at the end of the list.
func (p *PostingList) Append(offset int) {
	p.offsets = append(p.offsets, offset)
}

// Offsets returns a copy of the offsets in insertion order.
func (p *PostingList) Offsets() []int {
	out := make([]int, len(p.offsets))
	copy(out, p.offsets)
	return out
}

// Len returns the number of offsets.
func (p *PostingList) Len() int {
	return len(p.offsets)
}

// DocPostings maps a document identifier to the posting list of one title
// word in that document.
type DocPostings struct {
	word  string
	lists map[uint64]*PostingList
}

func newDocPostings(word string) *DocPostings {
	return &DocPostings{
		word:  word,
		lists: make(map[uint64]*PostingList),
	}
}

// Word returns the normalised title word this value is stored under.
func (d *DocPostings) Word() string {
	return d.word
}

// ListFor returns the posting list for docID, creating an empty one the
// first time the document is seen. Later calls return the same list.
func (d *DocPostings) ListFor(docID uint64) *PostingList {
	pl, ok := d.lists[docID]
	if !ok {
		pl = &PostingList{offsets: make([]int, 0, 4)}
		d.lists[docID] = pl
	}
	return pl
}

// Get returns the posting list for docID without creating it.
func (d *DocPostings) Get(docID uint64) (*PostingList, bool) {
	pl, ok := d.lists[docID]
	return pl, ok
}

// ContainsDoc reports whether the word occurs in docID.
func (d *DocPostings) ContainsDoc(docID uint64) bool {
	_, ok := d.lists[docID]
	return ok
}

// Docs returns the document identifiers in ascending order.
func (d *DocPostings) Docs() []uint64 {
	docs := make([]uint64, 0, len(d.lists))
	for id := range d.lists {
		docs = append(docs, id)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i] < docs[j] })
	return docs
}

// Len returns the number of documents.
func (d *DocPostings) Len() int {
	return len(d.lists)
}

func (d *DocPostings) release(stats *ReleaseStats) {
	stats.DocPostings++
	for id, pl := range d.lists {
		stats.PostingLists++
		stats.Offsets += len(pl.offsets)
		pl.offsets = nil
		delete(d.lists, id)
	}
}
