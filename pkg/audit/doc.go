// Package audit records role and organization changes for compliance.
//
// Every role assignment, removal, tier clamp, and denied access produces an
// Event. Loggers are composable: a FileLogger writes JSON lines with
// rotation, a StoreLogger persists events to the document store, and a
// MultiLogger fans out to both.
//
//	fileLogger, _ := audit.NewFileLogger(audit.DefaultFileLoggerConfig())
//	logger := audit.NewMultiLogger(fileLogger, audit.NewStoreLogger(st))
//	logger.Log(ctx, audit.RoleChange(ctx, audit.EventTypeRoleAssigned,
//	    actorID, userID, projectID, orgID, "assigned MANAGER"))
package audit
