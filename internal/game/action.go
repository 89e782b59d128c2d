package game

import "fmt"

// ActionKind identifies a session transition.
type ActionKind int

const (
	ActionStartLevel ActionKind = iota + 1
	ActionFlipCard
	ActionMatchFound
	ActionNoMatch
	ActionTickTimer
	ActionPauseGame
	ActionResumeGame
	ActionRestartLevel
	ActionCompleteLevel
	ActionFailLevel
)

var actionNames = map[ActionKind]string{
	ActionStartLevel:    "StartLevel",
	ActionFlipCard:      "FlipCard",
	ActionMatchFound:    "MatchFound",
	ActionNoMatch:       "NoMatch",
	ActionTickTimer:     "TickTimer",
	ActionPauseGame:     "PauseGame",
	ActionResumeGame:    "ResumeGame",
	ActionRestartLevel:  "RestartLevel",
	ActionCompleteLevel: "CompleteLevel",
	ActionFailLevel:     "FailLevel",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is a single input to the session machine.
// Only the fields relevant to Kind are read.
type Action struct {
	Kind    ActionKind
	Level   int
	CardID  string
	CardIDs []string
}

func (a Action) String() string {
	switch a.Kind {
	case ActionStartLevel:
		return fmt.Sprintf("%s(%d)", a.Kind, a.Level)
	case ActionFlipCard:
		return fmt.Sprintf("%s(%s)", a.Kind, a.CardID)
	case ActionMatchFound, ActionNoMatch:
		return fmt.Sprintf("%s(%v)", a.Kind, a.CardIDs)
	default:
		return a.Kind.String()
	}
}

func StartLevel(level int) Action { return Action{Kind: ActionStartLevel, Level: level} }

func FlipCard(id string) Action { return Action{Kind: ActionFlipCard, CardID: id} }

// MatchFound resolves the two face-up cards as a pair. The reducer does not
// compare images; Judge picks between MatchFound and NoMatch.
func MatchFound(ids ...string) Action { return Action{Kind: ActionMatchFound, CardIDs: ids} }

func NoMatch(ids ...string) Action { return Action{Kind: ActionNoMatch, CardIDs: ids} }

func TickTimer() Action { return Action{Kind: ActionTickTimer} }

func PauseGame() Action { return Action{Kind: ActionPauseGame} }

func ResumeGame() Action { return Action{Kind: ActionResumeGame} }

func RestartLevel() Action { return Action{Kind: ActionRestartLevel} }

// CompleteLevel forces a win, bypassing match detection.
func CompleteLevel() Action { return Action{Kind: ActionCompleteLevel} }

// FailLevel forces a loss.
func FailLevel() Action { return Action{Kind: ActionFailLevel} }
