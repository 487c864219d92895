package binder

import (
	"slices"

	"github.com/Lllllllleong/casebinder/internal/models"
)

// UnfiledSection names the trailing section that collects documents no
// section refers to.
const UnfiledSection = "Unfiled"

// Item is one step of the layout sequence: a section header or a document.
type Item struct {
	Section  *models.Section
	Document *models.Document
}

func (it Item) IsSection() bool { return it.Section != nil }

// Order returns the layout sequence shared by both passes. With sections,
// each section header is followed by its documents in listed order. Ids
// that match no document are skipped, and a document is filed only under
// the first place it is listed. Documents left out of every section
// follow under an Unfiled header. Without sections, documents are ordered by
// upload time.
func Order(docs []models.Document, sections []models.Section) []Item {
	byID := make(map[string]*models.Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}

	if len(sections) == 0 {
		sorted := make([]*models.Document, 0, len(docs))
		for i := range docs {
			sorted = append(sorted, &docs[i])
		}
		slices.SortStableFunc(sorted, func(a, b *models.Document) int {
			return a.UploadedAt.Compare(b.UploadedAt)
		})
		items := make([]Item, 0, len(sorted))
		for _, d := range sorted {
			items = append(items, Item{Document: d})
		}
		return items
	}

	var items []Item
	filed := make(map[string]bool, len(docs))
	for i := range sections {
		items = append(items, Item{Section: &sections[i]})
		for _, id := range sections[i].DocumentIDs {
			d, ok := byID[id]
			if !ok || filed[id] {
				continue
			}
			filed[id] = true
			items = append(items, Item{Document: d})
		}
	}

	var unfiled []Item
	for i := range docs {
		if !filed[docs[i].ID] {
			unfiled = append(unfiled, Item{Document: &docs[i]})
		}
	}
	if len(unfiled) > 0 {
		items = append(items, Item{Section: &models.Section{Name: UnfiledSection}})
		items = append(items, unfiled...)
	}
	return items
}
