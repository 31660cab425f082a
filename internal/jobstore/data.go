package jobstore

import (
	"time"

	"github.com/rohmanhakim/docs-crawler/internal/jobmodel"
)

/*
Package jobstore is the Job Store (C14, §4.14): a badgerhold-backed
collection for jobmodel.Job records plus a robfig/cron/v3 scheduler for
JobConfig.ScheduleConfig.CronExpression-driven recurring dispatch.
Grounded on ternarybob-quaero's internal/storage/badger/job_storage.go for
the CRUD/query shapes (Upsert/Get/Find/SortBy/Delete) and
internal/services/scheduler/scheduler_service.go for the cron.New/AddFunc/
Remove/Start/Stop lifecycle. jobRecord mirrors internal/store's pattern of
a storage-layer struct carrying bolthold tags around an otherwise-clean
domain type, so jobmodel stays free of persistence concerns.
*/

// jobRecord is the badgerhold-indexed envelope around a jobmodel.Job.
// Status/TenantId/JobType are duplicated at the top level (rather than
// queried through the nested Job field) because badgerhold indexes and
// queries top-level struct fields.
type jobRecord struct {
	ID        string `boltholdKey:"ID"`
	Status    string `boltholdIndex:"Status"`
	TenantId  string `boltholdIndex:"TenantId"`
	JobType   string `boltholdIndex:"JobType"`
	Priority  int
	CreatedAt time.Time

	Job jobmodel.Job
}
