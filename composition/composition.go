package composition

import (
	"fmt"

	"github.com/google/uuid"

	enginerr "github.com/skillsenselab/composekit/errors"
	"github.com/skillsenselab/composekit/validation"
)

// Composition is the declarative plan a composer executes: a pattern tag
// plus the pipelines (or layers) it governs and the pattern's options.
// Constructed once via the factory functions; composers read it, they do
// not write it.
type Composition struct {
	ID      string  `json:"id" validate:"required"`
	Pattern Pattern `json:"pattern" validate:"required"`

	// Pipelines holds the members for every pattern except cascading.
	Pipelines []PipelineRef `json:"pipelines,omitempty" validate:"omitempty,dive"`
	// Layers holds the ordered groups for the cascading pattern.
	Layers []Layer `json:"layers,omitempty" validate:"omitempty,dive"`

	Sequential SequentialOptions `json:"sequential_options"`
	Parallel   ParallelOptions   `json:"parallel_options"`
	Cascading  CascadingOptions  `json:"cascading_options"`
	Adaptive   AdaptiveOptions   `json:"adaptive_options"`
}

// NewSequential builds a sequential composition. An empty id gets a uuid.
func NewSequential(id string, pipelines []PipelineRef, opts SequentialOptions) (*Composition, error) {
	opts.ApplyDefaults()
	c := &Composition{
		ID:         orUUID(id),
		Pattern:    PatternSequential,
		Pipelines:  pipelines,
		Sequential: opts,
	}
	return c, c.validateStructure()
}

// NewParallel builds a parallel composition. An empty id gets a uuid.
func NewParallel(id string, pipelines []PipelineRef, opts ParallelOptions) (*Composition, error) {
	opts.ApplyDefaults()
	c := &Composition{
		ID:        orUUID(id),
		Pattern:   PatternParallel,
		Pipelines: pipelines,
		Parallel:  opts,
	}
	return c, c.validateStructure()
}

// NewCascading builds a cascading composition from ordered layers.
func NewCascading(id string, layers []Layer, opts CascadingOptions) (*Composition, error) {
	opts.ApplyDefaults()
	for i := range layers {
		layers[i].ApplyDefaults()
	}
	c := &Composition{
		ID:        orUUID(id),
		Pattern:   PatternCascading,
		Layers:    layers,
		Cascading: opts,
	}
	return c, c.validateStructure()
}

// NewAdaptive builds an adaptive composition.
func NewAdaptive(id string, pipelines []PipelineRef, opts AdaptiveOptions) (*Composition, error) {
	opts.ApplyDefaults()
	c := &Composition{
		ID:        orUUID(id),
		Pattern:   PatternAdaptive,
		Pipelines: pipelines,
		Adaptive:  opts,
	}
	return c, c.validateStructure()
}

// Validate performs the structural checks composers run before execution.
// maxLayerDepth bounds cascading depth; zero disables the depth check.
func (c *Composition) Validate(maxLayerDepth int) error {
	if err := c.validateStructure(); err != nil {
		return err
	}
	if c.Pattern == PatternCascading && maxLayerDepth > 0 && len(c.Layers) > maxLayerDepth {
		return enginerr.InvalidComposition(
			fmt.Sprintf("composition %s declares %d layers, maximum is %d", c.ID, len(c.Layers), maxLayerDepth))
	}
	return nil
}

// AllPipelines returns every pipeline reference regardless of pattern.
func (c *Composition) AllPipelines() []PipelineRef {
	if c.Pattern != PatternCascading {
		return c.Pipelines
	}
	var all []PipelineRef
	for _, l := range c.Layers {
		all = append(all, l.Pipelines...)
	}
	return all
}

func (c *Composition) validateStructure() error {
	if err := validation.Validate(c); err != nil {
		return enginerr.InvalidComposition(err.Error())
	}
	if !c.Pattern.Valid() {
		return enginerr.InvalidComposition(fmt.Sprintf("unknown pattern %q", c.Pattern))
	}

	if c.Pattern == PatternCascading {
		if len(c.Layers) == 0 {
			return enginerr.InvalidComposition("cascading composition requires at least one layer")
		}
	} else if len(c.Pipelines) == 0 {
		return enginerr.InvalidComposition("composition requires at least one pipeline")
	}

	seen := make(map[string]struct{})
	for _, p := range c.AllPipelines() {
		if p.ID == "" {
			return enginerr.InvalidComposition("pipeline id must not be empty")
		}
		if p.Processor == nil {
			return enginerr.InvalidComposition(fmt.Sprintf("pipeline %q has no processor", p.ID))
		}
		if _, dup := seen[p.ID]; dup {
			return enginerr.InvalidComposition(fmt.Sprintf("duplicate pipeline id %q", p.ID))
		}
		seen[p.ID] = struct{}{}
	}

	// Dependencies must reference declared pipelines.
	for _, p := range c.AllPipelines() {
		for _, dep := range p.DependsOn {
			if _, ok := seen[dep]; !ok {
				return enginerr.InvalidComposition(
					fmt.Sprintf("pipeline %q depends on unknown pipeline %q", p.ID, dep))
			}
		}
	}

	// Cascading layer ids must be unique and triggers must reference
	// earlier layers.
	if c.Pattern == PatternCascading {
		layerIDs := make(map[int]struct{}, len(c.Layers))
		for _, l := range c.Layers {
			if _, dup := layerIDs[l.ID]; dup {
				return enginerr.InvalidComposition(fmt.Sprintf("duplicate layer id %d", l.ID))
			}
			layerIDs[l.ID] = struct{}{}
		}
		for _, l := range c.Layers {
			for _, p := range l.Pipelines {
				for _, tr := range p.Triggers {
					if tr.Layer >= l.ID {
						return enginerr.InvalidComposition(
							fmt.Sprintf("pipeline %q trigger references layer %d, which is not earlier than its own layer %d",
								p.ID, tr.Layer, l.ID))
					}
				}
			}
		}
	}

	return nil
}

func orUUID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
