// Package workflow holds the versioned editing model of a workflow: the step
// mutation engine, the original/improved lineages and the editor session.
package workflow

import "github.com/kaizen-works/kaizen/pkg/models"

// LineageKind names the variant of a Lineage.
type LineageKind string

const (
	LineageDraft    LineageKind = "draft"    // Never saved, no improvement
	LineageOriginal LineageKind = "original" // Saved original, optionally with a stored improvement
	LineageImproved LineageKind = "improved" // Editing the improved variant of a base lineage
)

// Lineage is the step sequence currently being edited together with what it
// is linked to. It is one of *Draft, *Original or *Improved.
type Lineage interface {
	Kind() LineageKind
	Steps() []models.Step
	isLineage()
}

// Draft is an unsaved original workflow. Like Original it keeps the last
// improved sequence after a revert.
type Draft struct {
	steps       []models.Step
	improvedRef []models.Step
}

// Original is a saved original workflow. ImprovedRef keeps the last improved
// sequence after leaving the comparison so that a new request stays contextual.
type Original struct {
	steps       []models.Step
	improvedRef []models.Step
}

// Improved is an improved sequence edited on top of a frozen base lineage.
type Improved struct {
	steps    []models.Step
	base     Lineage
	previous []models.Step
}

func (*Draft) Kind() LineageKind    { return LineageDraft }
func (*Original) Kind() LineageKind { return LineageOriginal }
func (*Improved) Kind() LineageKind { return LineageImproved }

func (d *Draft) Steps() []models.Step    { return d.steps }
func (o *Original) Steps() []models.Step { return o.steps }
func (i *Improved) Steps() []models.Step { return i.steps }

func (*Draft) isLineage()    {}
func (*Original) isLineage() {}
func (*Improved) isLineage() {}

// ImprovedRef returns the stored improved sequence, if any.
func (d *Draft) ImprovedRef() []models.Step    { return d.improvedRef }
func (o *Original) ImprovedRef() []models.Step { return o.improvedRef }

// Base returns the frozen lineage the improvement was made from.
func (i *Improved) Base() Lineage { return i.base }

// Previous returns the one-level undo buffer.
func (i *Improved) Previous() []models.Step { return i.previous }

// NewDraft starts an unsaved lineage.
func NewDraft(steps []models.Step) *Draft {
	return &Draft{steps: Renumber(models.CloneSteps(steps))}
}

// NewOriginal starts a saved lineage with an optional stored improvement.
func NewOriginal(steps, improvedRef []models.Step) *Original {
	return &Original{
		steps:       Renumber(models.CloneSteps(steps)),
		improvedRef: Renumber(models.CloneSteps(improvedRef)),
	}
}

// NewImproved starts an improved lineage on top of base.
func NewImproved(steps []models.Step, base Lineage) *Improved {
	return &Improved{steps: Renumber(models.CloneSteps(steps)), base: freeze(base)}
}

// withSteps returns the same variant holding steps. For Draft and Original the
// edited sequence is the original, so current and original cannot diverge.
func withSteps(l Lineage, steps []models.Step) Lineage {
	switch v := l.(type) {
	case *Draft:
		return &Draft{steps: steps, improvedRef: v.improvedRef}
	case *Original:
		return &Original{steps: steps, improvedRef: v.improvedRef}
	case *Improved:
		return &Improved{steps: steps, base: v.base, previous: v.previous}
	default:
		panic("workflow: unknown lineage")
	}
}

// promote moves to the improved lineage. A first improvement carries no history;
// replacing an existing improvement keeps the replaced sequence as previous.
func promote(l Lineage, steps []models.Step) *Improved {
	if v, ok := l.(*Improved); ok {
		return &Improved{steps: steps, base: v.base, previous: models.CloneSteps(v.steps)}
	}

	return &Improved{steps: steps, base: freeze(l)}
}

// revert undoes one improvement. With a previous sequence it is restored and the
// buffer emptied; otherwise the base lineage becomes active again and keeps the
// improved sequence as its reference.
func revert(i *Improved) Lineage {
	if len(i.previous) > 0 {
		return &Improved{steps: i.previous, base: i.base}
	}

	switch v := i.base.(type) {
	case *Draft:
		return &Draft{steps: v.steps, improvedRef: models.CloneSteps(i.steps)}
	case *Original:
		return &Original{steps: v.steps, improvedRef: models.CloneSteps(i.steps)}
	default:
		return i.base
	}
}

// persist marks a draft as saved; other variants are returned unchanged except
// that an improved lineage gets a saved base.
func persist(l Lineage) Lineage {
	switch v := l.(type) {
	case *Draft:
		return &Original{steps: v.steps, improvedRef: v.improvedRef}
	case *Improved:
		return &Improved{steps: v.steps, base: persist(v.base), previous: v.previous}
	default:
		return l
	}
}

// freeze strips a base lineage of anything but its own steps.
func freeze(l Lineage) Lineage {
	switch v := l.(type) {
	case *Draft:
		return &Draft{steps: models.CloneSteps(v.steps)}
	case *Original:
		return &Original{steps: models.CloneSteps(v.steps)}
	case *Improved:
		return freeze(v.base)
	default:
		return l
	}
}
