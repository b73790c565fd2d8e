package observer

import "sync"

// Node is one element handed out by a Document.
type Node interface {
	Text() string
	// Attached is false once the element has been removed or replaced.
	Attached() bool
}

// Document is the page as seen by the scanner.
type Document interface {
	Query(selector string) (Node, bool)
	URL() string
}

// PageState is an in-process Document fed by bridge frames. A snapshot
// replaces every node; nodes handed out before it report detached.
type PageState struct {
	mu    sync.RWMutex
	url   string
	gen   uint64
	texts map[string]string
}

func NewPageState() *PageState {
	return &PageState{texts: make(map[string]string)}
}

// Snapshot replaces the whole page.
func (p *PageState) Snapshot(url string, nodes map[string]string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gen++
	if url != "" {
		p.url = url
	}
	p.texts = make(map[string]string, len(nodes))
	for sel, text := range nodes {
		p.texts[sel] = text
	}
}

// SetText updates or inserts one node in place.
func (p *PageState) SetText(selector, text string) {
	p.mu.Lock()
	p.texts[selector] = text
	p.mu.Unlock()
}

// Remove detaches one node.
func (p *PageState) Remove(selector string) {
	p.mu.Lock()
	delete(p.texts, selector)
	p.mu.Unlock()
}

func (p *PageState) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

func (p *PageState) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *PageState) Query(selector string) (Node, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if _, ok := p.texts[selector]; !ok {
		return nil, false
	}
	return &pageNode{page: p, gen: p.gen, selector: selector}, true
}

type pageNode struct {
	page     *PageState
	gen      uint64
	selector string
}

func (n *pageNode) Text() string {
	n.page.mu.RLock()
	defer n.page.mu.RUnlock()
	if n.gen != n.page.gen {
		return ""
	}
	return n.page.texts[n.selector]
}

func (n *pageNode) Attached() bool {
	n.page.mu.RLock()
	defer n.page.mu.RUnlock()
	if n.gen != n.page.gen {
		return false
	}
	_, ok := n.page.texts[n.selector]
	return ok
}
