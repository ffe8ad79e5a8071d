package mocks

//go:generate mockery --name Conn --srcpkg github.com/aevon-lab/aevon-insights/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
//go:generate mockery --name Source --srcpkg github.com/aevon-lab/aevon-insights/internal/core/storage --output ./storage --outpkg storagemocks --with-expecter
