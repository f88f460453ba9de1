package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"cliniccore/internal/auth"
	"cliniccore/internal/billing"
	"cliniccore/internal/clinic"
	"cliniccore/internal/httpserver/handlers"
	"cliniccore/internal/mailer"
)

// Deps carries everything the route tree needs. Handlers take their
// dependencies explicitly so tests can wire them against a throwaway DB.
type Deps struct {
	DB          *gorm.DB
	Codec       *auth.Codec
	Resolver    *auth.Resolver
	Projector   *clinic.Projector
	Gate        *billing.Gate
	Mailer      mailer.Mailer
	FrontendURL string
	Logger      *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	db, lg := d.DB, d.Logger
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/v1/auth/signup", handlers.Signup(db, d.Codec, d.Mailer, lg))
	r.Post("/v1/auth/login", handlers.Login(db, d.Codec, d.Projector, lg))
	r.Get("/v1/auth/verify-email", handlers.VerifyEmail(db, d.FrontendURL, lg))
	r.Post("/v1/auth/resend-verification", handlers.ResendVerification(db, d.Mailer, lg))
	r.Post("/v1/auth/accept-invite", handlers.AcceptInvite(db, d.Codec, lg))
	r.Get("/v1/plans", handlers.ListPlans(db, lg))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.RequireAuth(d.Resolver))

		protected.Get("/v1/me", handlers.Me(db, d.Codec, d.Projector, lg))
		protected.Post("/v1/auth/logout", handlers.Logout())
		protected.Get("/v1/profile", handlers.GetProfile(db, lg))
		protected.Patch("/v1/profile", handlers.UpdateProfile(db, lg))
		protected.Post("/v1/clinic/switch", handlers.SwitchClinic(db, d.Codec, d.Projector, d.Gate, lg))

		protected.Group(func(scoped chi.Router) {
			scoped.Use(auth.RequireClinicContext())

			scoped.Get("/v1/clinics/{clinicID}", handlers.GetClinic(db, lg))
			scoped.Get("/v1/billing/subscription", handlers.GetSubscription(d.Gate, lg))

			scoped.Group(func(admin chi.Router) {
				admin.Use(auth.RequireAnyRole(auth.RoleAdmin))
				admin.Patch("/v1/clinics/{clinicID}", handlers.UpdateClinic(db, lg))
				admin.Post("/v1/clinics/{clinicID}/invites", handlers.CreateInvite(db, d.Mailer, d.FrontendURL, lg))
				admin.Get("/v1/clinics/{clinicID}/invites", handlers.ListInvites(db, lg))
				admin.Get("/v1/clinics/{clinicID}/staff", handlers.ListStaff(db, lg))
				admin.Post("/v1/clinics/{clinicID}/staff", handlers.AddStaff(db, d.Gate, lg))
				admin.Patch("/v1/clinics/{clinicID}/staff/{userID}", handlers.UpdateStaff(db, d.Gate, lg))
				admin.Delete("/v1/clinics/{clinicID}/staff/{userID}", handlers.RemoveStaff(db, lg))
				admin.Post("/v1/clinics/{clinicID}/staff/{userID}/reset-password", handlers.ResetStaffPassword(db, lg))
				admin.Post("/v1/billing/upgrade", handlers.Upgrade(db, d.Gate, lg))
				admin.Post("/v1/billing/downgrade", handlers.Downgrade(db, d.Gate, lg))
				admin.Post("/v1/billing/cancel", handlers.CancelSubscription(db, lg))
			})

			scoped.Group(func(care chi.Router) {
				care.Use(handlers.RequireActiveSubscription(d.Gate))

				care.Get("/v1/patients", handlers.ListPatients(db, lg))
				care.Get("/v1/patients/{patientID}", handlers.GetPatient(db, lg))
				care.Get("/v1/patients/{patientID}/history", handlers.PatientHistory(db, d.Gate, lg))
				care.Get("/v1/doctors", handlers.ListDoctors(db, lg))
				care.Get("/v1/medicines", handlers.ListMedicines(db, lg))
				care.Get("/v1/appointments", handlers.ListAppointments(db, lg))
				care.Get("/v1/prescriptions", handlers.ListPrescriptions(db, lg))
				care.Get("/v1/invoices", handlers.ListInvoices(db, lg))
				care.Get("/v1/invoices/{invoiceID}/payments", handlers.ListPayments(db, lg))

				care.Group(func(front chi.Router) {
					front.Use(auth.RequireAnyRole(auth.RoleReceptionist, auth.RoleAdmin))
					front.Post("/v1/patients", handlers.CreatePatient(db, lg))
					front.Patch("/v1/patients/{patientID}", handlers.UpdatePatient(db, lg))
					front.Post("/v1/appointments", handlers.CreateAppointment(db, lg))
					front.Patch("/v1/appointments/{appointmentID}", handlers.UpdateAppointment(db, lg))
					front.Delete("/v1/appointments/{appointmentID}", handlers.DeleteAppointment(db, lg))
					front.Post("/v1/medicines", handlers.CreateMedicine(db, lg))
					front.Patch("/v1/medicines/{medicineID}", handlers.UpdateMedicine(db, lg))
					front.Post("/v1/invoices", handlers.CreateInvoice(db, lg))
					front.Patch("/v1/invoices/{invoiceID}", handlers.UpdateInvoice(db, lg))
					front.Post("/v1/invoices/{invoiceID}/payments", handlers.RecordPayment(db, lg))
				})

				care.Group(func(admin chi.Router) {
					admin.Use(auth.RequireAnyRole(auth.RoleAdmin))
					admin.Delete("/v1/patients/{patientID}", handlers.DeletePatient(db, lg))
					admin.Delete("/v1/medicines/{medicineID}", handlers.DeleteMedicine(db, lg))
				})

				care.Group(func(doctor chi.Router) {
					doctor.Use(auth.RequireAnyRole(auth.RoleDoctor))
					doctor.Post("/v1/prescriptions", handlers.CreatePrescription(db, lg))
					doctor.Patch("/v1/prescriptions/{prescriptionID}", handlers.UpdatePrescription(db, lg))
					doctor.Delete("/v1/prescriptions/{prescriptionID}", handlers.DeletePrescription(db, lg))
				})
			})
		})

		protected.Group(func(super chi.Router) {
			super.Use(auth.RequireSuperAdmin())
			super.Get("/v1/superadmin/clinics", handlers.SuperListClinics(db, lg))
			super.Patch("/v1/superadmin/clinics/{clinicID}", handlers.SuperUpdateClinic(db, lg))
			super.Delete("/v1/superadmin/clinics/{clinicID}", handlers.SuperDeleteClinic(db, lg))
			super.Patch("/v1/superadmin/clinics/{clinicID}/subscription", handlers.SuperOverrideSubscription(db, lg))
			super.Get("/v1/superadmin/users", handlers.SuperListUsers(db, lg))
			super.Patch("/v1/superadmin/users/{userID}", handlers.SuperUpdateUser(db, lg))
			super.Post("/v1/superadmin/users/{userID}/verify-email", handlers.SuperVerifyUserEmail(db, lg))
			super.Delete("/v1/superadmin/users/{userID}", handlers.SuperDeleteUser(db, lg))
			super.Post("/v1/superadmin/users/{userID}/clinics", handlers.SuperAssociateUser(db, lg))
			super.Delete("/v1/superadmin/users/{userID}/clinics/{clinicID}", handlers.SuperRemoveAssociation(db, lg))
			super.Post("/v1/superadmin/make-superadmin", handlers.MakeSuperAdmin(db, lg))
			super.Get("/v1/superadmin/plans", handlers.ListPlans(db, lg))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
