package service

import (
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// decArg matches a decimal argument by value rather than representation
func decArg(s string) any {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(want)
	})
}

type serviceMocks struct {
	factory  *MockUnitOfWorkFactory
	uow      *MockUnitOfWork
	accounts *MockAccountRepository
	wagers   *MockWagerRepository
	events   *MockEventRepository
	history  *MockBalanceHistoryRepository
}

func newServiceMocks() *serviceMocks {
	m := &serviceMocks{
		factory:  new(MockUnitOfWorkFactory),
		uow:      new(MockUnitOfWork),
		accounts: new(MockAccountRepository),
		wagers:   new(MockWagerRepository),
		events:   new(MockEventRepository),
		history:  new(MockBalanceHistoryRepository),
	}
	m.uow.SetRepositories(m.accounts, m.wagers, m.events, m.history)
	m.factory.On("Create").Return(m.uow)
	return m
}

// expectTransaction wires Begin and Rollback, and Commit when commit is true
func (m *serviceMocks) expectTransaction(commit bool) {
	m.uow.On("Begin", mock.Anything).Return(nil)
	m.uow.On("Rollback").Return(nil)
	if commit {
		m.uow.On("Commit").Return(nil)
	}
}
