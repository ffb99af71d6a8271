package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"resqnet/internal/agency/models"
	"resqnet/internal/agency/service/mocks"
	agencystore "resqnet/internal/agency/store"
	"resqnet/internal/documents"
	id "resqnet/pkg/domain"
	dErrors "resqnet/pkg/domain-errors"
	"resqnet/pkg/platform/sentinel"
)

// SaveFailureSuite drives the failure paths that need precise control over
// collaborators.
type SaveFailureSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockStore
	checker *mocks.MockUniqueness
	docs    *mocks.MockDocuments
	auditor *mocks.MockAuditPublisher
	service *Service
	owner   id.UserID
	ctx     context.Context
}

func TestSaveFailureSuite(t *testing.T) {
	suite.Run(t, new(SaveFailureSuite))
}

func (s *SaveFailureSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.checker = mocks.NewMockUniqueness(s.ctrl)
	s.docs = mocks.NewMockDocuments(s.ctrl)
	s.auditor = mocks.NewMockAuditPublisher(s.ctrl)
	s.service = New(s.store, s.checker, s.docs, WithAuditPublisher(s.auditor))
	s.owner = id.NewUserID()
	s.ctx = context.Background()
}

func (s *SaveFailureSuite) TearDownTest() {
	s.ctrl.Finish()
}

func uploadedCertificate() []documents.Replacement {
	return []documents.Replacement{
		{URL: "http://blob.local/docs/new", Superseded: "http://blob.local/docs/old", Uploaded: true},
		{},
		{},
	}
}

func (s *SaveFailureSuite) TestPersistFailureDiscardsNewBlobs() {
	existing := &models.Application{ID: id.NewApplicationID(), UserID: s.owner, Status: models.StatusDraft, RegistrationCertificateURL: "http://blob.local/docs/old"}

	s.store.EXPECT().FindByOwner(gomock.Any(), s.owner).Return(existing, nil)
	s.docs.EXPECT().ReplaceAll(gomock.Any(), gomock.Len(3), s.owner).Return(uploadedCertificate(), nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
	s.docs.EXPECT().Discard(gomock.Any(), "http://blob.local/docs/new")

	_, err := s.service.Save(s.ctx, s.owner, SaveCommand{Draft: true})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *SaveFailureSuite) TestSuccessDiscardsSupersededBlobs() {
	existing := &models.Application{ID: id.NewApplicationID(), UserID: s.owner, Status: models.StatusRejected, RegistrationCertificateURL: "http://blob.local/docs/old"}

	s.store.EXPECT().FindByOwner(gomock.Any(), s.owner).Return(existing, nil)
	s.docs.EXPECT().ReplaceAll(gomock.Any(), gomock.Any(), s.owner).Return(uploadedCertificate(), nil)
	s.store.EXPECT().Update(gomock.Any(), gomock.Any()).Return(nil)
	s.docs.EXPECT().Discard(gomock.Any(), "http://blob.local/docs/old")
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(errors.New("audit sink down"))

	res, err := s.service.Save(s.ctx, s.owner, SaveCommand{Draft: true})
	s.Require().NoError(err, "audit failures are best-effort")
	s.Equal("http://blob.local/docs/new", res.Application.RegistrationCertificateURL)
}

func (s *SaveFailureSuite) TestUploadFailureStopsBeforePersist() {
	s.store.EXPECT().FindByOwner(gomock.Any(), s.owner).Return(nil, sentinel.ErrNotFound)
	s.docs.EXPECT().ReplaceAll(gomock.Any(), gomock.Any(), s.owner).
		Return(nil, dErrors.New(dErrors.CodeUploadFailed, "failed to upload cert.pdf"))

	_, err := s.service.Save(s.ctx, s.owner, SaveCommand{Draft: true})
	s.True(dErrors.HasCode(err, dErrors.CodeUploadFailed))
}

func (s *SaveFailureSuite) TestIndexBackstopMapsToLabelledConflict() {
	size := 3
	fields := models.Fields{
		AgencyName: "Relief Org", AgencyType: models.AgencyTypeGovernment, AgencyAddress: "a", City: "c",
		State: "s", PinCode: "411001", TeamSize: &size, ServicesOffered: []string{"rescue"}, CIN: "U1",
	}

	s.store.EXPECT().FindByOwner(gomock.Any(), s.owner).Return(nil, sentinel.ErrNotFound)
	s.checker.EXPECT().CheckAll(gomock.Any(), s.owner, gomock.Any()).Return(nil)
	s.docs.EXPECT().ReplaceAll(gomock.Any(), gomock.Any(), s.owner).Return(make([]documents.Replacement, 3), nil)
	s.store.EXPECT().Create(gomock.Any(), gomock.Any()).Return(&agencystore.IdentityConflictError{Field: models.FieldCIN})
	s.docs.EXPECT().Discard(gomock.Any())
	s.auditor.EXPECT().Emit(gomock.Any(), gomock.Any()).Return(nil)

	_, err := s.service.Save(s.ctx, s.owner, SaveCommand{Fields: fields})
	de, ok := dErrors.As(err)
	s.Require().True(ok)
	s.Equal(dErrors.CodeConflict, de.Code)
	s.Equal("CIN already exists", de.Message)
}

func (s *SaveFailureSuite) TestOwnerCannotEditVerifiedApplication() {
	existing := &models.Application{ID: id.NewApplicationID(), UserID: s.owner, Status: models.StatusVerified}
	s.store.EXPECT().FindByOwner(gomock.Any(), s.owner).Return(existing, nil)

	_, err := s.service.Save(s.ctx, s.owner, SaveCommand{})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}
