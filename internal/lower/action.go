package lower

import "linkgen/internal/ast"

// Action is what the dispatcher does with a declaration kind in a given
// position.
type Action uint8

const (
	// ActionInvalid marks a kind that cannot appear in the position.
	ActionInvalid Action = iota
	// ActionEmit emits the declaration's artifacts immediately.
	ActionEmit
	// ActionDefer declares the artifacts and hands bodies to the body lowerer.
	ActionDefer
	// ActionMetadata emits only runtime metadata.
	ActionMetadata
	// ActionNone produces nothing.
	ActionNone
)

func (a Action) String() string {
	switch a {
	case ActionEmit:
		return "emit"
	case ActionDefer:
		return "defer"
	case ActionMetadata:
		return "metadata"
	case ActionNone:
		return "none"
	}
	return "invalid"
}

type actionTable map[ast.DeclKind]Action

func (t actionTable) get(k ast.DeclKind) Action {
	if a, ok := t[k]; ok {
		return a
	}
	return ActionInvalid
}

// File-level declarations.
var globalActions = actionTable{
	ast.DeclFunc:         ActionDefer,
	ast.DeclConstructor:  ActionInvalid,
	ast.DeclDestructor:   ActionInvalid,
	ast.DeclVar:          ActionEmit,
	ast.DeclSubscript:    ActionInvalid,
	ast.DeclStruct:       ActionEmit,
	ast.DeclClass:        ActionEmit,
	ast.DeclEnum:         ActionEmit,
	ast.DeclEnumElement:  ActionInvalid,
	ast.DeclProtocol:     ActionEmit,
	ast.DeclExtension:    ActionEmit,
	ast.DeclTypeAlias:    ActionNone,
	ast.DeclOperator:     ActionNone,
	ast.DeclImport:       ActionNone,
	ast.DeclTopLevelCode: ActionDefer,
}

// Declarations defined elsewhere but referenced by this module.
var externalActions = actionTable{
	ast.DeclFunc:         ActionEmit,
	ast.DeclConstructor:  ActionEmit,
	ast.DeclDestructor:   ActionInvalid,
	ast.DeclVar:          ActionInvalid,
	ast.DeclSubscript:    ActionInvalid,
	ast.DeclStruct:       ActionMetadata,
	ast.DeclClass:        ActionNone,
	ast.DeclEnum:         ActionMetadata,
	ast.DeclEnumElement:  ActionInvalid,
	ast.DeclProtocol:     ActionMetadata,
	ast.DeclExtension:    ActionInvalid,
	ast.DeclTypeAlias:    ActionInvalid,
	ast.DeclOperator:     ActionInvalid,
	ast.DeclImport:       ActionInvalid,
	ast.DeclTopLevelCode: ActionInvalid,
}

// Members of an extension.
var extensionMemberActions = actionTable{
	ast.DeclFunc:         ActionDefer,
	ast.DeclConstructor:  ActionDefer,
	ast.DeclDestructor:   ActionInvalid,
	ast.DeclVar:          ActionDefer, // computed only
	ast.DeclSubscript:    ActionDefer,
	ast.DeclStruct:       ActionEmit,
	ast.DeclClass:        ActionEmit,
	ast.DeclEnum:         ActionEmit,
	ast.DeclEnumElement:  ActionInvalid,
	ast.DeclProtocol:     ActionInvalid,
	ast.DeclExtension:    ActionInvalid,
	ast.DeclTypeAlias:    ActionNone,
	ast.DeclOperator:     ActionInvalid,
	ast.DeclImport:       ActionInvalid,
	ast.DeclTopLevelCode: ActionInvalid,
}

// Members of a struct, class, enum or protocol.
var memberActions = actionTable{
	ast.DeclFunc:         ActionDefer,
	ast.DeclConstructor:  ActionDefer,
	ast.DeclDestructor:   ActionDefer,
	ast.DeclVar:          ActionEmit,
	ast.DeclSubscript:    ActionDefer,
	ast.DeclStruct:       ActionEmit,
	ast.DeclClass:        ActionEmit,
	ast.DeclEnum:         ActionEmit,
	ast.DeclEnumElement:  ActionDefer,
	ast.DeclProtocol:     ActionEmit,
	ast.DeclExtension:    ActionInvalid,
	ast.DeclTypeAlias:    ActionNone,
	ast.DeclOperator:     ActionNone,
	ast.DeclImport:       ActionInvalid,
	ast.DeclTopLevelCode: ActionInvalid,
}

// GlobalAction is the action for a file-level declaration.
func GlobalAction(k ast.DeclKind) Action { return globalActions.get(k) }

// ExternalAction is the action for a declaration referenced from another
// module.
func ExternalAction(k ast.DeclKind) Action { return externalActions.get(k) }

// ExtensionMemberAction is the action for a member of an extension.
func ExtensionMemberAction(k ast.DeclKind) Action { return extensionMemberActions.get(k) }

// MemberAction is the action for a member of a nominal type.
func MemberAction(k ast.DeclKind) Action { return memberActions.get(k) }
