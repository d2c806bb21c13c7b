package disburse

//go:generate mockgen -destination=mocks/mock_ledger.go -package=mocks github.com/mariusgiger/batch-disburser/pkg/blockchain Ledger
//go:generate mockgen -destination=mocks/mock_signer.go -package=mocks github.com/mariusgiger/batch-disburser/pkg/signer Signer
//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/mariusgiger/batch-disburser/pkg/disburse Recorder
