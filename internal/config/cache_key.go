package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LearnerSessionKey returns the cache key for a learner's login session (JTI).
func (r *CacheKeyStruct) LearnerSessionKey(learnerID int) string {
	return fmt.Sprintf("login:%d", learnerID)
}

// SessionSnapshotKey returns the cache key for a session's latest snapshot.
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID string) string {
	return fmt.Sprintf("session:%s:snapshot", sessionID)
}

// SessionAuditTailKey returns the cache key for a session's recent audit entries.
func (r *CacheKeyStruct) SessionAuditTailKey(sessionID string) string {
	return fmt.Sprintf("session:%s:audit_tail", sessionID)
}

// SessionStreamChannel returns the Redis PubSub channel for a session's live stream.
func (r *CacheKeyStruct) SessionStreamChannel(sessionID string) string {
	return fmt.Sprintf("session:%s:stream", sessionID)
}

// CaseStudyPayloadKey returns the cache key for a case study's learner payload.
func (r *CacheKeyStruct) CaseStudyPayloadKey(caseStudyID string) string {
	return fmt.Sprintf("case_study:%s:payload", caseStudyID)
}

// LearnerActiveSessionKey returns the cache key for a learner's active session id,
// scoped per case study so a learner can resume the right attempt.
func (r *CacheKeyStruct) LearnerActiveSessionKey(learnerID int, caseStudyID string) string {
	return fmt.Sprintf("learner:%d:case_study:%s:active_session", learnerID, caseStudyID)
}

var CacheKey = NewCacheKeyStruct()
