package event

import "sort"

// Family groups event types by the entity they primarily describe.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyTask
	FamilyProject
	FamilyMembership
)

func (f Family) String() string {
	switch f {
	case FamilyTask:
		return "task"
	case FamilyProject:
		return "project"
	case FamilyMembership:
		return "membership"
	default:
		return "unknown"
	}
}

const (
	TaskCreated           = "task.created"
	TaskUpdated           = "task.updated"
	TaskDeleted           = "task.deleted"
	TaskAssigneeCreated   = "task.assignee.created"
	TaskAssigneeDeleted   = "task.assignee.deleted"
	TaskCommentCreated    = "task.comment.created"
	TaskCommentEdited     = "task.comment.edited"
	TaskCommentDeleted    = "task.comment.deleted"
	TaskAttachmentCreated = "task.attachment.created"
	TaskAttachmentDeleted = "task.attachment.deleted"
	TaskRelationCreated   = "task.relation.created"
	TaskRelationDeleted   = "task.relation.deleted"

	ProjectCreated    = "project.created"
	ProjectUpdated    = "project.updated"
	ProjectDeleted    = "project.deleted"
	ProjectSharedUser = "project.shared.user"
	ProjectSharedTeam = "project.shared.team"

	TeamMemberAdded   = "team.member.added"
	TeamMemberRemoved = "team.member.removed"
)

var families = map[string]Family{
	TaskCreated:           FamilyTask,
	TaskUpdated:           FamilyTask,
	TaskDeleted:           FamilyTask,
	TaskAssigneeCreated:   FamilyTask,
	TaskAssigneeDeleted:   FamilyTask,
	TaskCommentCreated:    FamilyTask,
	TaskCommentEdited:     FamilyTask,
	TaskCommentDeleted:    FamilyTask,
	TaskAttachmentCreated: FamilyTask,
	TaskAttachmentDeleted: FamilyTask,
	TaskRelationCreated:   FamilyTask,
	TaskRelationDeleted:   FamilyTask,
	ProjectCreated:        FamilyProject,
	ProjectUpdated:        FamilyProject,
	ProjectDeleted:        FamilyProject,
	ProjectSharedUser:     FamilyProject,
	ProjectSharedTeam:     FamilyProject,
	TeamMemberAdded:       FamilyMembership,
	TeamMemberRemoved:     FamilyMembership,
}

// FamilyOf returns the family of an event type, FamilyUnknown if unlisted.
func FamilyOf(name string) Family { return families[name] }

// Known reports whether name is a listed event type.
func Known(name string) bool {
	_, ok := families[name]
	return ok
}

// ReferencesUser reports whether events of this type name a user that should
// be looked up.
func ReferencesUser(name string) bool {
	return FamilyOf(name) == FamilyMembership || name == ProjectSharedUser
}

// IsComment reports whether the event type carries a task comment.
func IsComment(name string) bool {
	switch name {
	case TaskCommentCreated, TaskCommentEdited, TaskCommentDeleted:
		return true
	}
	return false
}

// Types returns every listed event type, sorted.
func Types() []string {
	out := make([]string, 0, len(families))
	for name := range families {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
