package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/occhealth/occhealth/internal/config"
	"github.com/occhealth/occhealth/internal/domain/catalog"
	"github.com/occhealth/occhealth/internal/domain/staff"
	"github.com/occhealth/occhealth/internal/platform/apperr"
	"github.com/occhealth/occhealth/internal/platform/auth"
)

// seedExams is the starter catalog: one exam per clinical module plus the
// usual laboratory panel.
var seedExams = []catalog.Exam{
	{Code: "TRI-001", Name: "Triaje", Category: "Evaluación médica", ExamType: catalog.TypeTriage, BasePrice: 15},
	{Code: "AUD-001", Name: "Audiometría tonal", Category: "Evaluación médica", ExamType: catalog.TypeAudiometry, BasePrice: 35},
	{Code: "OFT-001", Name: "Evaluación oftalmológica", Category: "Evaluación médica", ExamType: catalog.TypeOphthalmology, BasePrice: 30},
	{Code: "ESP-001", Name: "Espirometría", Category: "Evaluación médica", ExamType: catalog.TypeSpirometry, BasePrice: 40},
	{Code: "LAB-001", Name: "Hemograma completo", Category: "Laboratorio", ExamType: catalog.TypeLaboratory, BasePrice: 20},
	{Code: "LAB-002", Name: "Glucosa en ayunas", Category: "Laboratorio", ExamType: catalog.TypeLaboratory, BasePrice: 10},
	{Code: "LAB-003", Name: "Perfil lipídico", Category: "Laboratorio", ExamType: catalog.TypeLaboratory, BasePrice: 25},
	{Code: "OST-001", Name: "Evaluación osteomuscular", Category: "Evaluación médica", ExamType: catalog.TypeMusculoskeletal, BasePrice: 30},
	{Code: "PSI-001", Name: "Evaluación psicológica", Category: "Evaluación médica", ExamType: catalog.TypePsychology, BasePrice: 45},
	{Code: "MED-001", Name: "Examen médico general", Category: "Evaluación médica", ExamType: catalog.TypeGeneral, BasePrice: 50},
}

// examCreator is the part of catalog.Service the seeder uses.
type examCreator interface {
	GetExamByCode(ctx context.Context, code string) (*catalog.Exam, error)
	CreateExam(ctx context.Context, e *catalog.Exam) error
}

// seedCatalog creates the exams in seedExams that do not exist yet and
// returns how many were created.
func seedCatalog(ctx context.Context, exams examCreator) (int, error) {
	created := 0
	for _, tmpl := range seedExams {
		_, err := exams.GetExamByCode(ctx, tmpl.Code)
		if err == nil {
			continue
		}
		if !errors.Is(err, apperr.ErrNotFound) {
			return created, fmt.Errorf("look up exam %s: %w", tmpl.Code, err)
		}
		e := tmpl
		e.Active = true
		if err := exams.CreateExam(ctx, &e); err != nil {
			return created, fmt.Errorf("create exam %s: %w", tmpl.Code, err)
		}
		created++
	}
	return created, nil
}

func seedCmd() *cobra.Command {
	var adminEmail, adminPassword string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the starter exam catalog and the administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := buildServices(pool, nil, nil, newLogger(cfg.Env), cfg.CertificateValidityDays)
			n, err := seedCatalog(ctx, svc.catalog)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d of %d catalog exam(s).\n", n, len(seedExams))

			admin, err := seedAdmin(cfg, adminEmail)
			if err != nil {
				return err
			}
			created, err := svc.staff.EnsureUser(ctx, admin, adminPassword)
			if err != nil {
				return fmt.Errorf("seed admin: %w", err)
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created administrator %s (%s).\n", admin.Email, admin.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&adminEmail, "admin-email", "admin@occhealth.local", "administrator email")
	cmd.Flags().StringVar(&adminPassword, "admin-password", "admin12345", "administrator password")
	return cmd
}

// seedAdmin builds the administrator whose id matches DEV_USER_ID, so the
// development auth mode resolves to a real account.
func seedAdmin(cfg *config.Config, email string) (*staff.User, error) {
	id, err := uuid.Parse(cfg.DevUserID)
	if err != nil {
		return nil, fmt.Errorf("DEV_USER_ID %q is not a uuid: %w", cfg.DevUserID, err)
	}
	return &staff.User{
		ID:       id,
		Email:    email,
		FullName: "Administrador",
		Role:     auth.RoleAdmin,
		Active:   true,
	}, nil
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage staff accounts",
	}

	var email, password, role, name, license, specialty string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a staff account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			cfg, pool, err := openPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			u := &staff.User{
				Email:    email,
				FullName: name,
				Role:     role,
				Active:   true,
			}
			if license != "" {
				u.LicenseNumber = &license
			}
			if specialty != "" {
				u.Specialty = &specialty
			}
			svc := buildServices(pool, nil, nil, newLogger(cfg.Env), cfg.CertificateValidityDays)
			if err := svc.staff.CreateUser(ctx, u, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (%s).\n", u.Role, u.Email, u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "login email")
	create.Flags().StringVar(&password, "password", "", "initial password")
	create.Flags().StringVar(&role, "role", auth.RoleAdmissions, "one of admin, medico, admision, enfermeria, auditor")
	create.Flags().StringVar(&name, "name", "", "full name")
	create.Flags().StringVar(&license, "license", "", "medical license number")
	create.Flags().StringVar(&specialty, "specialty", "", "medical specialty")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")
	_ = create.MarkFlagRequired("name")

	cmd.AddCommand(create)
	return cmd
}
