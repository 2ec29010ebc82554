package taxes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arcbooks/arcbooks/internal/shared"
)

type memoryTaxRepo struct {
	taxes      map[int64]Tax
	groups     map[int64]TaxGroup
	exemptions map[int64]TaxExemption
	nextID     int64
}

func newMemoryTaxRepo() *memoryTaxRepo {
	return &memoryTaxRepo{taxes: make(map[int64]Tax), groups: make(map[int64]TaxGroup), exemptions: make(map[int64]TaxExemption)}
}

func (r *memoryTaxRepo) WithTenant(ctx context.Context, schema string, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTaxTx{repo: r})
}

type memoryTaxTx struct {
	repo *memoryTaxRepo
}

func (t *memoryTaxTx) InsertTax(ctx context.Context, tax Tax) (Tax, error) {
	t.repo.nextID++
	tax.ID = t.repo.nextID
	t.repo.taxes[tax.ID] = tax
	return tax, nil
}

func (t *memoryTaxTx) UpdateTax(ctx context.Context, tax Tax) error {
	if _, ok := t.repo.taxes[tax.ID]; !ok {
		return ErrTaxNotFound
	}
	t.repo.taxes[tax.ID] = tax
	return nil
}

func (t *memoryTaxTx) GetTax(ctx context.Context, id int64) (Tax, error) {
	tax, ok := t.repo.taxes[id]
	if !ok {
		return Tax{}, ErrTaxNotFound
	}
	return tax, nil
}

func (t *memoryTaxTx) GetTaxes(ctx context.Context, ids []int64) ([]Tax, error) {
	out := make([]Tax, 0, len(ids))
	for _, id := range ids {
		tax, ok := t.repo.taxes[id]
		if !ok {
			return nil, ErrInvalidTaxIDs
		}
		out = append(out, tax)
	}
	return out, nil
}

func (t *memoryTaxTx) ListTaxes(ctx context.Context, filters shared.ListFilters) ([]Tax, int, error) {
	var out []Tax
	for _, tax := range t.repo.taxes {
		out = append(out, tax)
	}
	return out, len(out), nil
}

func (t *memoryTaxTx) SoftDeleteTax(ctx context.Context, id int64, at time.Time) error {
	if _, ok := t.repo.taxes[id]; !ok {
		return ErrTaxNotFound
	}
	delete(t.repo.taxes, id)
	return nil
}

func (t *memoryTaxTx) InsertGroup(ctx context.Context, g TaxGroup, taxIDs []int64) (TaxGroup, error) {
	t.repo.nextID++
	g.ID = t.repo.nextID
	var err error
	g.Taxes, err = t.GetTaxes(ctx, taxIDs)
	if err != nil {
		return TaxGroup{}, err
	}
	t.repo.groups[g.ID] = g
	return g, nil
}

func (t *memoryTaxTx) UpdateGroup(ctx context.Context, g TaxGroup, taxIDs []int64) error {
	existing, ok := t.repo.groups[g.ID]
	if !ok {
		return ErrTaxGroupNotFound
	}
	if taxIDs != nil {
		var err error
		existing.Taxes, err = t.GetTaxes(ctx, taxIDs)
		if err != nil {
			return err
		}
	}
	existing.Name = g.Name
	existing.Description = g.Description
	existing.IsActive = g.IsActive
	t.repo.groups[g.ID] = existing
	return nil
}

func (t *memoryTaxTx) GetGroup(ctx context.Context, id int64) (TaxGroup, error) {
	g, ok := t.repo.groups[id]
	if !ok {
		return TaxGroup{}, ErrTaxGroupNotFound
	}
	return g, nil
}

func (t *memoryTaxTx) ListGroups(ctx context.Context, filters shared.ListFilters) ([]TaxGroup, int, error) {
	var out []TaxGroup
	for _, g := range t.repo.groups {
		out = append(out, g)
	}
	return out, len(out), nil
}

func (t *memoryTaxTx) SoftDeleteGroup(ctx context.Context, id int64, at time.Time) error {
	if _, ok := t.repo.groups[id]; !ok {
		return ErrTaxGroupNotFound
	}
	delete(t.repo.groups, id)
	return nil
}

func (t *memoryTaxTx) InsertExemption(ctx context.Context, e TaxExemption) (TaxExemption, error) {
	t.repo.nextID++
	e.ID = t.repo.nextID
	t.repo.exemptions[e.ID] = e
	return e, nil
}

func (t *memoryTaxTx) UpdateExemption(ctx context.Context, e TaxExemption) error {
	if _, ok := t.repo.exemptions[e.ID]; !ok {
		return ErrExemptionNotFound
	}
	t.repo.exemptions[e.ID] = e
	return nil
}

func (t *memoryTaxTx) GetExemption(ctx context.Context, id int64) (TaxExemption, error) {
	e, ok := t.repo.exemptions[id]
	if !ok {
		return TaxExemption{}, ErrExemptionNotFound
	}
	return e, nil
}

func (t *memoryTaxTx) ListExemptions(ctx context.Context, filters shared.ListFilters) ([]TaxExemption, int, error) {
	var out []TaxExemption
	for _, e := range t.repo.exemptions {
		out = append(out, e)
	}
	return out, len(out), nil
}

func (t *memoryTaxTx) ExemptionsForContact(ctx context.Context, contactID int64) ([]TaxExemption, error) {
	var out []TaxExemption
	for _, e := range t.repo.exemptions {
		if e.ContactID == contactID && e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (t *memoryTaxTx) SoftDeleteExemption(ctx context.Context, id int64, at time.Time) error {
	if _, ok := t.repo.exemptions[id]; !ok {
		return ErrExemptionNotFound
	}
	delete(t.repo.exemptions, id)
	return nil
}

func seedTaxes(t *testing.T, svc *Service) (normal, compound Tax) {
	t.Helper()
	ctx := context.Background()
	var err error
	normal, err = svc.CreateTax(ctx, "tenant_test", TaxInput{Name: "Sales Tax", Type: TypeNormal, Rate: 5, IsActive: true})
	require.NoError(t, err)
	compound, err = svc.CreateTax(ctx, "tenant_test", TaxInput{Name: "Provincial", Type: TypeCompound, Rate: 10, IsActive: true})
	require.NoError(t, err)
	return normal, compound
}

func TestCalculateTaxOrdersAdHocListByRank(t *testing.T) {
	svc := NewService(newMemoryTaxRepo())
	normal, compound := seedTaxes(t, svc)

	// compound listed first, but rank ordering puts normal first
	result, err := svc.CalculateTax(context.Background(), "tenant_test", 100, []int64{compound.ID, normal.ID}, 0)
	require.NoError(t, err)
	require.Equal(t, 15.0, result.TaxAmount)
}

func TestCalculateTaxRejectsUnknownIDs(t *testing.T) {
	svc := NewService(newMemoryTaxRepo())
	_, err := svc.CalculateTax(context.Background(), "tenant_test", 100, []int64{99}, 0)
	require.ErrorIs(t, err, ErrInvalidTaxIDs)
}

func TestCalculateTaxWithGroupUsesStoredOrder(t *testing.T) {
	svc := NewService(newMemoryTaxRepo())
	normal, compound := seedTaxes(t, svc)
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "tenant_test", GroupInput{Name: "Combined", IsActive: true, TaxIDs: []int64{compound.ID, normal.ID}})
	require.NoError(t, err)

	// stored order is compound first, so normal computes on 110
	result, err := svc.CalculateTaxWithGroup(ctx, "tenant_test", 100, group.ID, 0)
	require.NoError(t, err)
	require.Equal(t, 15.5, result.TaxAmount)
}

func TestCalculateTaxWithEmptyGroup(t *testing.T) {
	svc := NewService(newMemoryTaxRepo())
	ctx := context.Background()

	group, err := svc.CreateGroup(ctx, "tenant_test", GroupInput{Name: "Empty", IsActive: true})
	require.NoError(t, err)

	_, err = svc.CalculateTaxWithGroup(ctx, "tenant_test", 100, group.ID, 0)
	require.ErrorIs(t, err, ErrTaxGroupEmpty)
}

func TestCalculateTaxAppliesContactExemptions(t *testing.T) {
	svc := NewService(newMemoryTaxRepo())
	normal, compound := seedTaxes(t, svc)
	ctx := context.Background()

	_, err := svc.CreateExemption(ctx, "tenant_test", ExemptionInput{ContactID: 7, ExemptionType: ExemptGovernment, IsActive: true})
	require.NoError(t, err)

	result, err := svc.CalculateTax(ctx, "tenant_test", 100, []int64{normal.ID, compound.ID}, 7)
	require.NoError(t, err)
	require.Equal(t, 0.0, result.TaxAmount)
}

func TestCreateTaxValidation(t *testing.T) {
	svc := NewService(newMemoryTaxRepo())
	ctx := context.Background()

	_, err := svc.CreateTax(ctx, "tenant_test", TaxInput{Name: "Bad", Type: "flat", Rate: 5})
	require.ErrorIs(t, err, ErrInvalidTaxType)

	_, err = svc.CreateTax(ctx, "tenant_test", TaxInput{Name: "Bad", Type: TypeNormal, Rate: 120})
	require.ErrorIs(t, err, ErrInvalidTaxRate)

	_, err = svc.CreateTax(ctx, "tenant_test", TaxInput{Name: "  ", Type: TypeNormal, Rate: 5})
	require.Error(t, err)
}
