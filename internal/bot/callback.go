package bot

import (
	"fmt"
	"strconv"
	"strings"
)

// actionKind enumerates every inline-keyboard action the bot understands.
// Callback data is decoded into an action exactly once, at the update
// boundary; handlers never look at raw callback strings.
type actionKind int

const (
	actUnknown actionKind = iota
	actAddTask
	actListMenu
	actDoneMenu
	actEditMenu
	actDeleteMenu
	actStats
	actCategories
	actExport
	actBackMain
	actListFilter   // task list, payload: category id or all
	actDoneFilter   // completion menu, payload: category id or all
	actEditFilter   // edit menu, payload: category id or all
	actDeleteFilter // delete menu, payload: category id or all
	actPickCategory // dialogue: choose existing category
	actSkipCategory // dialogue: leave the task uncategorized
	actNewCategory  // dialogue: create a category inline
	actRepeatType   // payload: none/daily/weekly/interval
	actToggleDay    // payload: mon..sun
	actDaysDone
	actDoneTask      // payload: task id
	actEditTask      // payload: task id
	actEditField     // payload: title/time/category/repeat/offset
	actDeleteTask    // payload: task id
	actConfirmDelete // payload: task id
	actCancelDelete
	actCatCreate
	actCatView          // payload: category id
	actCatRename        // payload: category id
	actCatDelete        // payload: category id
	actCatConfirmDelete // payload: category id
)

// action is the decoded form of one callback: a kind plus its typed payload.
// Numeric payloads land in id (hasID set), everything else in value.
type action struct {
	kind  actionKind
	id    uint
	hasID bool
	value string
}

var actionNames = map[actionKind]string{
	actAddTask:          "add",
	actListMenu:         "list",
	actDoneMenu:         "done_menu",
	actEditMenu:         "edit_menu",
	actDeleteMenu:       "delete_menu",
	actStats:            "stats",
	actCategories:       "categories",
	actExport:           "export",
	actBackMain:         "back",
	actListFilter:       "list_filter",
	actDoneFilter:       "done_filter",
	actEditFilter:       "edit_filter",
	actDeleteFilter:     "delete_filter",
	actPickCategory:     "pick_cat",
	actSkipCategory:     "skip_cat",
	actNewCategory:      "new_cat",
	actRepeatType:       "repeat",
	actToggleDay:        "day",
	actDaysDone:         "days_done",
	actDoneTask:         "done",
	actEditTask:         "edit",
	actEditField:        "field",
	actDeleteTask:       "delete",
	actConfirmDelete:    "confirm_delete",
	actCancelDelete:     "cancel_delete",
	actCatCreate:        "cat_create",
	actCatView:          "cat_view",
	actCatRename:        "cat_rename",
	actCatDelete:        "cat_delete",
	actCatConfirmDelete: "cat_confirm_delete",
}

var actionKinds = func() map[string]actionKind {
	kinds := make(map[string]actionKind, len(actionNames))
	for kind, name := range actionNames {
		kinds[name] = kind
	}
	return kinds
}()

func encodeAction(a action) string {
	name := actionNames[a.kind]
	switch {
	case a.hasID:
		return fmt.Sprintf("%s:%d", name, a.id)
	case a.value != "":
		return name + ":" + a.value
	default:
		return name
	}
}

func idAction(kind actionKind, id uint) string {
	return encodeAction(action{kind: kind, id: id, hasID: true})
}

func valueAction(kind actionKind, value string) string {
	return encodeAction(action{kind: kind, value: value})
}

func plainAction(kind actionKind) string {
	return encodeAction(action{kind: kind})
}

// decodeAction parses raw callback data. Unknown or malformed data yields
// ok=false and is ignored by the dispatcher.
func decodeAction(data string) (action, bool) {
	name, payload, _ := strings.Cut(data, ":")
	kind, ok := actionKinds[name]
	if !ok {
		return action{}, false
	}
	a := action{kind: kind}
	if payload != "" {
		if id, err := strconv.ParseUint(payload, 10, 32); err == nil {
			a.id = uint(id)
			a.hasID = true
		} else {
			a.value = payload
		}
	}
	return a, true
}
