package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virtualcard_back/models"
)

func TestListCardsPrefersCachedBalance(t *testing.T) {
	e := newEnv()
	e.cache.Set("card_1", decimal.NewFromInt(80))

	cards, err := e.cardSvc.ListCards(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "4532 **** **** 1234", cards[0].MaskedNumber)
	assert.True(t, cards[0].Balance.Equal(decimal.NewFromInt(80)))
}

func TestRequestCardReusesCardholder(t *testing.T) {
	e := newEnv()
	holder := "holder-existing"
	require.NoError(t, e.users.SetCardholderID(context.Background(), 1, holder))

	_, err := e.cardSvc.RequestCard(context.Background(), 1, "")
	require.NoError(t, err)
	assert.Zero(t, e.provider.holders)
	assert.Equal(t, []string{"holder-existing/visacard-1"}, e.provider.created)

	stored, err := e.cards.GetCard(context.Background(), "crd_new")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.UserID)
}

func TestCardholderRequestTruncatesNames(t *testing.T) {
	req := cardholderRequest(models.User{
		FirstName: "Maximilianusz", LastName: "Vandenberghe-Smith", Email: "m@example.com",
	}, "visacard-1")

	assert.Equal(t, "Maximilianus", req.FirstName)
	assert.Equal(t, "Vandenberghe", req.LastName)
	assert.Len(t, req.Name, 23)
	assert.Equal(t, "1990-01-01", req.DateOfBirth)
}
