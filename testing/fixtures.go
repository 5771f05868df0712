package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/utils"
	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// RandomPhone returns a 13-digit Mexican mobile number
func RandomPhone() string {
	return fmt.Sprintf("521%010d", rand.Int63n(9000000000)+1000000000)
}

// CreateTestLead creates a lead enrolled in the given enrollments (nil leaves the column NULL)
func (tf *TestFixtures) CreateTestLead(name string, enrollments []models.SequenceEnrollment) (*models.Lead, error) {
	lead := &models.Lead{
		Phone:  RandomPhone(),
		Name:   name,
		Source: utils.LeadSourceWhatsApp,
		State:  utils.LeadStateNew,
		Labels: pq.StringArray{utils.DefaultLeadTrigger},
	}
	if enrollments != nil {
		if err := lead.SetEnrollments(enrollments); err != nil {
			return nil, err
		}
	}
	if err := tf.DB.DB.Create(lead).Error; err != nil {
		return nil, fmt.Errorf("failed to create lead: %w", err)
	}
	return lead, nil
}

// CreateTestSequence creates a sequence definition
func (tf *TestFixtures) CreateTestSequence(trigger string, steps ...models.SequenceStep) (*models.Sequence, error) {
	seq := &models.Sequence{
		Trigger: trigger,
		Steps:   datatypes.NewJSONSlice(steps),
	}
	if err := tf.DB.DB.Create(seq).Error; err != nil {
		return nil, fmt.Errorf("failed to create sequence %s: %w", trigger, err)
	}
	return seq, nil
}

// CreateTestLyricRequest creates a lyric request for lead in the given status
func (tf *TestFixtures) CreateTestLyricRequest(lead *models.Lead, status models.LyricStatus, generatedAgo time.Duration) (*models.LyricRequest, error) {
	req := &models.LyricRequest{
		Purpose:       "Aniversario de bodas",
		IncludeName:   "Laura",
		Anecdotes:     "Nos conocimos en Oaxaca",
		RequesterName: "Carlos Pérez",
		Status:        status,
	}
	if lead != nil {
		req.LeadID = &lead.ID
		req.LeadPhone = lead.Phone
	}
	if status != models.LyricStatusPending {
		req.Lyric = utils.ToPtr("**Nuestra historia**\nVerso 1...")
		req.LyricGeneratedAt = utils.ToPtr(utils.UTCNow().Add(-generatedAgo))
	}
	if err := tf.DB.DB.Create(req).Error; err != nil {
		return nil, fmt.Errorf("failed to create lyric request: %w", err)
	}
	return req, nil
}
