package mocks

//go:generate mockgen -destination=./mock_provider.go -package=mocks github.com/rxtech-lab/pulse-trading/pkg/marketdata/provider Provider
//go:generate mockgen -destination=../internal/warmup/mocks/mock_downloader.go -package=mocks github.com/rxtech-lab/pulse-trading/internal/warmup CandleDownloader
//go:generate mockgen -destination=./mock_gateway.go -package=mocks github.com/rxtech-lab/pulse-trading/internal/gateway Gateway
