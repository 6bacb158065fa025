package config

type WorkerKeyStruct struct {
	PersistAuditQueue     string
	PersistSnapshotsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAuditQueue:     "persist_audit_queue",
	PersistSnapshotsQueue: "persist_snapshots_queue",
}
