package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Verifier

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"learnhub/internal/enrollment"
	"learnhub/internal/enrollment/models"
	"learnhub/internal/payment"
	"learnhub/internal/payment/handler/mocks"
	"learnhub/internal/platform/logger"
	id "learnhub/pkg/domain"
	dErrors "learnhub/pkg/domain-errors"
	"learnhub/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	verifier *mocks.MockVerifier
	router   chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.verifier = mocks.NewMockVerifier(s.ctrl)
	s.router = chi.NewRouter()
	New(s.verifier, logger.Discard()).Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func body() map[string]string {
	return map[string]string{
		"razorpay_order_id":   "order_1",
		"razorpay_payment_id": "pay_1",
		"razorpay_signature":  "abc",
		"courseId":            "c",
		"userId":              "u",
	}
}

func (s *HandlerSuite) TestMapsPayloadFields() {
	course := &models.Course{ID: id.NewCourseID(), Name: "Go"}
	s.verifier.EXPECT().Verify(gomock.Any(), payment.Confirmation{
		OrderID: "order_1", PaymentID: "pay_1", Signature: "abc", CourseID: "c", UserID: "u",
	}).Return(&payment.Verification{
		Enrollment: &enrollment.Result{Outcome: models.OutcomeEnrolled, Course: course},
		OrderID:    "order_1",
		PaymentID:  "pay_1",
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/verify-payment", body()))
	s.Require().Equal(http.StatusOK, rr.Code)

	resp := testutil.DecodeJSON[verifyPaymentResponse](s.T(), rr)
	s.True(resp.Success)
	s.False(resp.AlreadyEnrolled)
	s.Require().NotNil(resp.Data)
	s.Equal(course.ID.String(), resp.Data.CourseID)
	s.Equal("Go", resp.Data.CourseName)
	s.Equal("order_1", resp.Data.OrderID)
}

func (s *HandlerSuite) TestReplayIsSuccess() {
	s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).Return(&payment.Verification{AlreadyEnrolled: true}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/verify-payment", body()))
	s.Require().Equal(http.StatusOK, rr.Code)

	resp := testutil.DecodeJSON[verifyPaymentResponse](s.T(), rr)
	s.True(resp.AlreadyEnrolled)
	s.Equal("Already enrolled in this course", resp.Message)
	s.Nil(resp.Data)
}

func (s *HandlerSuite) TestErrors() {
	s.Run("signature mismatch", func() {
		s.verifier.EXPECT().Verify(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeSignatureMismatch, "payment verification failed"))

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/verify-payment", body()))
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "signature_mismatch")
	})

	s.Run("malformed body", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/verify-payment", nil)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertError(s.T(), rr, http.StatusBadRequest, "bad_request")
	})
}
