package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CandidateSessionKey returns the cache key pinning a candidate's login JTI.
func (r *CacheKeyStruct) CandidateSessionKey(candidateID int) string {
	return fmt.Sprintf("login:%d", candidateID)
}

// AnswersKey returns the hash key holding a candidate's saved answers.
func (r *CacheKeyStruct) AnswersKey(assessmentID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:assessment:%s:answers", candidateID, assessmentID)
}

// MarksKey returns the hash key holding a candidate's review marks.
func (r *CacheKeyStruct) MarksKey(assessmentID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:assessment:%s:marks", candidateID, assessmentID)
}

// SnapshotsKey returns the list key holding a candidate's proctoring snapshots.
func (r *CacheKeyStruct) SnapshotsKey(assessmentID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:assessment:%s:snapshots", candidateID, assessmentID)
}

// SubmissionKey returns the key holding a candidate's final submission record.
func (r *CacheKeyStruct) SubmissionKey(assessmentID string, candidateID int) string {
	return fmt.Sprintf("candidate:%d:assessment:%s:submission", candidateID, assessmentID)
}

var CacheKey = NewCacheKeyStruct()
