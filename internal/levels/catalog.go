package levels

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaSrc []byte

//go:embed catalog.cue
var catalogSrc []byte

// ErrLevelOutOfRange is returned when a level is outside 1..MaxLevel.
var ErrLevelOutOfRange = errors.New("level out of range")

// Config is the immutable board configuration for one level.
type Config struct {
	Level            int `json:"level"`
	GridSize         int `json:"grid_size"`
	TimeLimitSeconds int `json:"time_limit_seconds"`
	OptimalMoves     int `json:"optimal_moves"`
	AcceptableMoves  int `json:"acceptable_moves"`
}

// Cells returns the number of cards on the board.
func (c Config) Cells() int {
	return c.GridSize * c.GridSize
}

// Pairs returns the number of matching pairs on the board.
func (c Config) Pairs() int {
	return c.Cells() / 2
}

// tier is the decoded form of one CUE tier entry.
type tier struct {
	From             int `json:"from"`
	To               int `json:"to"`
	GridSize         int `json:"gridSize"`
	TimeLimitSeconds int `json:"timeLimitSeconds"`
	OptimalMoves     int `json:"optimalMoves"`
	AcceptableMoves  int `json:"acceptableMoves"`
}

type document struct {
	MaxLevel int    `json:"maxLevel"`
	Tiers    []tier `json:"tiers"`
}

// Catalog resolves level numbers to configurations.
// A Catalog is immutable after Load and safe for concurrent use.
type Catalog struct {
	maxLevel int
	tiers    []tier
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog compiled from the embedded tiers.
// Panics if the embedded source is invalid, which tests guard against.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(catalogSrc)
		if err != nil {
			panic(fmt.Sprintf("levels: embedded catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadFile reads and compiles a CUE catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Load(src)
}

// Load compiles a CUE catalog source against the tier schema.
func Load(src []byte) (*Catalog, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	data := ctx.CompileBytes(src, cue.Filename("catalog.cue"))
	if err := data.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog: %w", err)
	}

	value := schema.Unify(data)
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validate catalog: %w", err)
	}

	var doc document
	if err := value.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := checkCoverage(doc); err != nil {
		return nil, err
	}

	return &Catalog{maxLevel: doc.MaxLevel, tiers: doc.Tiers}, nil
}

// checkCoverage verifies tiers cover 1..maxLevel without gaps or overlap
// and that every board has an even cell count.
func checkCoverage(doc document) error {
	if len(doc.Tiers) == 0 {
		return fmt.Errorf("catalog has no tiers")
	}
	next := 1
	for i, t := range doc.Tiers {
		if t.From != next {
			return fmt.Errorf("tier %d starts at level %d, expected %d", i, t.From, next)
		}
		if (t.GridSize*t.GridSize)%2 != 0 {
			return fmt.Errorf("tier %d: grid %dx%d has an odd number of cells", i, t.GridSize, t.GridSize)
		}
		if t.OptimalMoves < t.GridSize*t.GridSize/2 {
			return fmt.Errorf("tier %d: optimal moves %d below pair count %d", i, t.OptimalMoves, t.GridSize*t.GridSize/2)
		}
		next = t.To + 1
	}
	if next-1 != doc.MaxLevel {
		return fmt.Errorf("tiers end at level %d, expected maxLevel %d", next-1, doc.MaxLevel)
	}
	return nil
}

// MaxLevel returns the highest playable level.
func (c *Catalog) MaxLevel() int {
	return c.maxLevel
}

// Check returns ErrLevelOutOfRange unless 1 <= level <= MaxLevel.
func (c *Catalog) Check(level int) error {
	if level < 1 || level > c.maxLevel {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrLevelOutOfRange, level, c.maxLevel)
	}
	return nil
}

// ConfigFor returns the configuration for level.
// Callers must validate with Check first; out-of-range input panics.
func (c *Catalog) ConfigFor(level int) Config {
	for _, t := range c.tiers {
		if level >= t.From && level <= t.To {
			return Config{
				Level:            level,
				GridSize:         t.GridSize,
				TimeLimitSeconds: t.TimeLimitSeconds,
				OptimalMoves:     t.OptimalMoves,
				AcceptableMoves:  t.AcceptableMoves,
			}
		}
	}
	panic(fmt.Sprintf("levels: ConfigFor(%d) outside 1..%d", level, c.maxLevel))
}

// Levels returns the configuration of every level in ascending order.
func (c *Catalog) Levels() []Config {
	out := make([]Config, 0, c.maxLevel)
	for level := 1; level <= c.maxLevel; level++ {
		out = append(out, c.ConfigFor(level))
	}
	return out
}
