package service

import (
	"context"
	"fmt"

	"github.com/bitfantasy/repairhub/internal/repair/repository"
	"github.com/xuri/excelize/v2"
)

// ExportService 网点维修单台账导出
type ExportService struct {
	orderRepo  *repository.OrderRepository
	statusRepo *repository.StatusRepository
}

func NewExportService(repos *repository.Repositories) *ExportService {
	return &ExportService{orderRepo: repos.Order, statusRepo: repos.Status}
}

// ExportBranchOrders 导出网点全部未删除维修单为 xlsx
func (s *ExportService) ExportBranchOrders(ctx context.Context, branchID string) (*excelize.File, error) {
	orders, err := s.orderRepo.ListByBranch(ctx, branchID)
	if err != nil {
		return nil, wrapStorage(err)
	}

	f := excelize.NewFile()
	sheet := "Orders"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"ID", "Status", "Sort", "Customer", "Phone", "Device", "IMEI", "Priority", "Created At"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	for row, o := range orders {
		statusName := o.StatusID
		if o.OrderStatus != nil {
			statusName = o.OrderStatus.NameUz
		}
		deviceName := o.PhoneCategoryID
		if o.PhoneCategory != nil {
			deviceName = o.PhoneCategory.Name
		}
		values := []interface{}{
			o.ID, statusName, o.Sort, o.CustomerName, o.CustomerPhone,
			deviceName, o.IMEI, o.Priority, o.CreatedAt.Format("2006-01-02 15:04"),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row+2)
			f.SetCellValue(sheet, cell, v)
		}
	}

	if err := f.SetColWidth(sheet, "A", "I", 18); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	return f, nil
}
