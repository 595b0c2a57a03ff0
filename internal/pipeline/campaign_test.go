package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AngelCh415/mkt-kpi/internal/ingest"
	"github.com/AngelCh415/mkt-kpi/internal/metrics"
	"github.com/AngelCh415/mkt-kpi/internal/models"
)

const campaignCSV = `Campaign_ID,Company,Campaign_Type,Target_Audience,Channel_Used,Conversion_Rate,Acquisition_Cost,ROI,Clicks,Impressions,Date
1,Innovate Industries,Email,Men 18-24,Google Ads,0.04,"$16,174.00",6.29,506,1922,2021-01-01
2,NexGen Systems,Email,Women 35-44,Google Ads,0.12,"$11,566.00",5.61,116,7523,2021-02-01
3,Alpha Innovations,Influencer,Men 25-34,YouTube,0.07,"$10,200.00",7.18,584,7698,2021-03-01
`

func TestCampaignFileSegmentsAndReportedROI(t *testing.T) {
	ev, err := NewEngine(DefaultOptions(), nil, nil).LoadEvents(context.Background(), strings.NewReader(campaignCSV), ingest.FormatCSV)
	require.NoError(t, err)
	assert.True(t, ev.HasROI)
	assert.Equal(t, "Email", ev.Records[0].CampaignType)
	assert.Equal(t, "Innovate Industries", ev.Records[0].Company)

	res, err := metrics.NewService(10, nil).Compute(context.Background(), ev, nil)
	require.NoError(t, err)

	assert.Equal(t, models.RankByROI, res.RankBy)
	roi, ok := res.ROI.Get()
	require.True(t, ok)
	assert.Equal(t, 6.36, roi)
	require.NotEmpty(t, res.TopCampaigns)
	assert.Equal(t, "3", res.TopCampaigns[0].Campaign)

	require.Len(t, res.CampaignTypes, 2)
	email := res.CampaignTypes[0]
	assert.Equal(t, "Email", email.Segment)
	assert.Equal(t, 2, email.Campaigns)
	assert.EqualValues(t, 34, email.Purchases)
	v, ok := email.ROI.Get()
	require.True(t, ok)
	assert.Equal(t, 5.95, v)
	// (16174*20 + 11566*14) / 34
	v, ok = email.CAC.Get()
	require.True(t, ok)
	assert.Equal(t, 14276.59, v)

	assert.Len(t, res.Audiences, 3)
	assert.Len(t, res.Companies, 3)
	assert.Equal(t, "Alpha Innovations", res.Companies[0].Segment)
}
