package jobs

import "github.com/yukikurage/taskflow-api/internal/queue"

// Register binds every job type to its handler on w.
func Register(w *queue.Worker, b *Broadcaster, n *Notifier) {
	w.Handle(TypeBroadcastTask, b.Task)
	w.Handle(TypeBroadcastTaskDeleted, b.TaskDeleted)
	w.Handle(TypeBroadcastComment, b.Comment)
	w.Handle(TypeBroadcastCommentDeleted, b.CommentDeleted)

	w.Handle(TypeNotifyTaskAssigned, n.TaskAssigned)
	w.Handle(TypeNotifyTaskUnassigned, n.TaskUnassigned)
	w.Handle(TypeNotifyStatusChanged, n.StatusChanged)
	w.Handle(TypeNotifyCommentToAssignee, n.CommentToAssignee)
	w.Handle(TypeNotifyCommentToCreator, n.CommentToCreator)
	w.Handle(TypeNotifyInvitation, n.Invitation)
	w.Handle(TypeNotifyRoleChanged, n.RoleChanged)
	w.Handle(TypeNotifyRemoved, n.Removed)
}
