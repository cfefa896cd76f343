package world

import (
	"fmt"

	"github.com/heritagebuilder/heritage/internal/coord"
	"github.com/heritagebuilder/heritage/internal/core/pool"
	"github.com/heritagebuilder/heritage/internal/nav"
	"github.com/heritagebuilder/heritage/internal/resource"
	"github.com/heritagebuilder/heritage/internal/tile"
)

// TaskKind is the goal a unit works towards.
type TaskKind uint8

const (
	DeliverToStorage TaskKind = iota + 1
	FetchFromStorage
	HarvestWood
	Settle
	Patrol
	Despawn
)

var taskKindNames = map[TaskKind]string{
	DeliverToStorage: "deliver_to_storage",
	FetchFromStorage: "fetch_from_storage",
	HarvestWood:      "harvest_wood",
	Settle:           "settle",
	Patrol:           "patrol",
	Despawn:          "despawn",
}

func (k TaskKind) String() string {
	if n, ok := taskKindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("task_kind(%d)", uint8(k))
}

// TaskState is the position of a task in its state machine.
type TaskState uint8

const (
	Plan TaskState = iota
	Route
	Travel
	Act
	Notify
	Abort
)

var taskStateNames = [...]string{"plan", "route", "travel", "act", "notify", "abort"}

func (s TaskState) String() string {
	if int(s) < len(taskStateNames) {
		return taskStateNames[s]
	}
	return fmt.Sprintf("task_state(%d)", uint8(s))
}

// Task is a unit's current goal. Origin is the building that spawned the
// unit; Target is the building or prop the task is heading to. Returning
// tasks head back to the origin.
type Task struct {
	ID    pool.Handle `json:"id"`
	Kind  TaskKind    `json:"kind"`
	State TaskState   `json:"state"`
	Unit  pool.Handle `json:"unit"`

	Origin            tile.GameState `json:"origin"`
	OriginCell        coord.Cell     `json:"origin_cell"`
	OriginFingerprint uint64         `json:"origin_fingerprint"`
	Target            tile.GameState `json:"target"`
	TargetCell        coord.Cell     `json:"target_cell"`
	Returning         bool           `json:"returning"`
	Reserved          bool           `json:"reserved"`

	Path     nav.Path `json:"path,omitempty"`
	PathStep int      `json:"path_step"`
	Reroutes uint8    `json:"reroutes"`
	Timer    float32  `json:"timer"`

	Cargo                 resource.StockItem    `json:"cargo"` // initial inventory
	Wanted                resource.ShoppingList `json:"wanted,omitempty"`
	PropName              string                `json:"prop,omitempty"`
	SearchRadius          int32                 `json:"search_radius"`
	AllowProducerFallback bool                  `json:"allow_producer_fallback"`

	Callback   string   `json:"callback,omitempty"`
	Notified   bool     `json:"notified"`
	Completion TaskKind `json:"completion"`
	Failed     bool     `json:"failed"`
}

func (t *Task) String() string {
	return fmt.Sprintf("%s%s[%s]", t.Kind, t.ID, t.State)
}
